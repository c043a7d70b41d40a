package repository

import (
	"context"
	"errors"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrStatusExists = errors.New("status already exists")

func (r *Repository) ListStatuses(ctx context.Context, entity domain.EntityKind) ([]domain.Status, error) {
	rows, err := r.pool.Query(ctx, `
    SELECT id, entity, name, position, color
    FROM statuses
    WHERE entity = $1
    ORDER BY position, name
  `, entity)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Status, error) {
		var s domain.Status
		err := row.Scan(&s.ID, &s.Entity, &s.Name, &s.Position, &s.Color)
		return s, err
	})
}

// CreateStatus inserts a status. A lead status also gets its notification
// setting row, enabled, in the same statement.
func (r *Repository) CreateStatus(ctx context.Context, entity domain.EntityKind, name string, position int, color string) (domain.Status, error) {
	var s domain.Status
	err := r.pool.QueryRow(ctx, `
    WITH inserted AS (
        INSERT INTO statuses (entity, name, position, color)
        VALUES ($1, $2, $3, $4)
        RETURNING id, entity, name, position, color
    ), setting AS (
        INSERT INTO notification_settings (status_slug, status_name, enabled)
        SELECT $5, name, true FROM inserted WHERE entity = 'lead'
        ON CONFLICT (status_slug) DO NOTHING
    )
    SELECT id, entity, name, position, color FROM inserted
  `, entity, name, position, color, domain.StatusSlug(name)).Scan(&s.ID, &s.Entity, &s.Name, &s.Position, &s.Color)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Status{}, ErrStatusExists
		}
		return domain.Status{}, err
	}
	return s, nil
}
