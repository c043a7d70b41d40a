// Package repository reads the product catalog.
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Product is an active catalog product with its tags.
type Product struct {
	ID           uuid.UUID
	Code         string
	Name         string
	StandardRate float64
	Description  string
	Disabled     bool
	Tags         []string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productSelect = `
    SELECT p.id, p.product_code, p.product_name, p.standard_rate::float8, p.description, p.disabled,
           COALESCE(array_agg(t.tag_name ORDER BY t.tag_name) FILTER (WHERE t.tag_name IS NOT NULL), '{}')
    FROM products p
    LEFT JOIN product_tags t ON t.product_id = p.id`

func (r *Repository) query(ctx context.Context, where string, orderBy string, args ...any) ([]Product, error) {
	sql := productSelect + `
    WHERE p.disabled = false` + where + `
    GROUP BY p.id
    ORDER BY ` + orderBy + fmt.Sprintf(`
    LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var p Product
		err := row.Scan(&p.ID, &p.Code, &p.Name, &p.StandardRate, &p.Description, &p.Disabled, &p.Tags)
		return p, err
	})
}

// ListActive returns active products ordered by name.
func (r *Repository) ListActive(ctx context.Context, limit int) ([]Product, error) {
	return r.query(ctx, "", "p.product_name", limit)
}

// ByName matches a case-insensitive substring of the product name.
func (r *Repository) ByName(ctx context.Context, term string, limit int) ([]Product, error) {
	return r.query(ctx, `
      AND p.product_name ILIKE '%' || $1 || '%'`, "p.product_name", term, limit)
}

// ByTag returns products carrying a tag containing term.
func (r *Repository) ByTag(ctx context.Context, term string, limit int) ([]Product, error) {
	return r.query(ctx, `
      AND EXISTS (
        SELECT 1 FROM product_tags pt
        WHERE pt.product_id = p.id AND pt.tag_name ILIKE '%' || $1 || '%'
      )`, "p.product_name", term, limit)
}

// ByPriceRange returns products priced within [min, max], cheapest first.
func (r *Repository) ByPriceRange(ctx context.Context, min, max float64, limit int) ([]Product, error) {
	return r.query(ctx, `
      AND p.standard_rate BETWEEN $1 AND $2`, "p.standard_rate, p.product_name", min, max, limit)
}
