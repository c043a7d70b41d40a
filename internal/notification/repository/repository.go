// Package repository stores per-status notification settings and the
// payment instructions text.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("notification setting not found")

// Setting controls the customer message sent when a lead enters a status.
type Setting struct {
	Slug          string
	StatusName    string
	Enabled       bool
	CustomMessage string
	UpdatedAt     time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const settingColumns = `status_slug, status_name, enabled, custom_message, updated_at`

func scanSetting(row pgx.Row) (Setting, error) {
	var s Setting
	err := row.Scan(&s.Slug, &s.StatusName, &s.Enabled, &s.CustomMessage, &s.UpdatedAt)
	return s, err
}

func (r *Repository) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+settingColumns+` FROM notification_settings ORDER BY status_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Setting, error) {
		return scanSetting(row)
	})
}

func (r *Repository) GetSetting(ctx context.Context, slug string) (Setting, error) {
	s, err := scanSetting(r.pool.QueryRow(ctx, `SELECT `+settingColumns+` FROM notification_settings WHERE status_slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Setting{}, ErrNotFound
	}
	return s, err
}

// UpdateSetting changes the given fields; nil fields are left as they are.
func (r *Repository) UpdateSetting(ctx context.Context, slug string, enabled *bool, customMessage *string) (Setting, error) {
	s, err := scanSetting(r.pool.QueryRow(ctx, `
    UPDATE notification_settings
    SET enabled = COALESCE($2, enabled),
        custom_message = COALESCE($3, custom_message),
        updated_at = now()
    WHERE status_slug = $1
    RETURNING `+settingColumns,
		slug, enabled, customMessage,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Setting{}, ErrNotFound
	}
	return s, err
}

// PaymentInstructions returns the configured free-text payment block, or "".
func (r *Repository) PaymentInstructions(ctx context.Context) (string, error) {
	var text string
	err := r.pool.QueryRow(ctx, `SELECT instructions FROM payment_settings WHERE id = 1`).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return text, err
}

func (r *Repository) SetPaymentInstructions(ctx context.Context, text string) error {
	_, err := r.pool.Exec(ctx, `
    INSERT INTO payment_settings (id, instructions, updated_at)
    VALUES (1, $1, now())
    ON CONFLICT (id) DO UPDATE
    SET instructions = EXCLUDED.instructions, updated_at = now()
  `, text)
	return err
}
