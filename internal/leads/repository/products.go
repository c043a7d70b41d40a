package repository

import (
	"context"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const lineColumns = `
    id, position, product_code, product_name, qty, rate, amount,
    discount_percentage, discount_amount, net_amount`

func scanLine(row pgx.CollectableRow) (domain.ProductLine, error) {
	var l domain.ProductLine
	err := row.Scan(
		&l.ID, &l.Position, &l.ProductCode, &l.ProductName, &l.Qty, &l.Rate, &l.Amount,
		&l.DiscountPercentage, &l.DiscountAmount, &l.NetAmount,
	)
	return l, err
}

func (r *Repository) ListLeadProducts(ctx context.Context, leadID uuid.UUID) ([]domain.ProductLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+lineColumns+` FROM lead_products WHERE lead_id = $1 ORDER BY position`, leadID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLine)
}

// ReplaceLeadProducts swaps every line of the lead and stores the totals.
func (r *Repository) ReplaceLeadProducts(ctx context.Context, leadID uuid.UUID, lines []domain.ProductLine, totals domain.Totals) error {
	return r.replaceLines(ctx, "lead_products", "lead_id", "leads", leadID, lines, totals)
}

func (r *Repository) ListDealProducts(ctx context.Context, dealID uuid.UUID) ([]domain.ProductLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+lineColumns+` FROM deal_products WHERE deal_id = $1 ORDER BY position`, dealID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLine)
}

// ReplaceDealProducts swaps every line of the deal and stores the totals.
func (r *Repository) ReplaceDealProducts(ctx context.Context, dealID uuid.UUID, lines []domain.ProductLine, totals domain.Totals) error {
	return r.replaceLines(ctx, "deal_products", "deal_id", "deals", dealID, lines, totals)
}

// replaceLines only ever receives the constant table names above.
func (r *Repository) replaceLines(ctx context.Context, table, ownerColumn, ownerTable string, ownerID uuid.UUID, lines []domain.ProductLine, totals domain.Totals) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE `+ownerTable+` SET total = $2, net_total = $3, updated_at = now() WHERE id = $1`,
		ownerID, totals.Total, totals.NetTotal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE `+ownerColumn+` = $1`, ownerID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`
    INSERT INTO `+table+` (
        `+ownerColumn+`, position, product_code, product_name, qty, rate, amount,
        discount_percentage, discount_amount, net_amount
    )
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
  `, ownerID, line.Position, line.ProductCode, line.ProductName, line.Qty, line.Rate, line.Amount,
			line.DiscountPercentage, line.DiscountAmount, line.NetAmount)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
