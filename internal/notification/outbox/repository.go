// Package outbox persists customer notifications until the channel has
// accepted them.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("outbox record not found")

type Status string

const (
	StatusPending        Status = "pending"
	StatusEnqueued       Status = "enqueued"
	StatusProcessing     Status = "processing"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
	errRepoNotConfigured        = "outbox repository not configured"
)

const ChannelWhatsApp = "whatsapp"

type Record struct {
	ID             uuid.UUID
	IdempotencyKey string
	LeadID         *uuid.UUID
	Channel        string
	Recipient      string
	Body           string
	Label          string
	Status         Status
	Attempts       int
	LastError      string
	RunAt          time.Time
}

type InsertParams struct {
	IdempotencyKey string
	LeadID         *uuid.UUID
	Recipient      string
	Body           string
	Label          string
	RunAt          time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `
    id, idempotency_key, lead_id, channel, recipient, body, label, status, attempts, last_error, run_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var status string
	err := row.Scan(&rec.ID, &rec.IdempotencyKey, &rec.LeadID, &rec.Channel, &rec.Recipient, &rec.Body,
		&rec.Label, &status, &rec.Attempts, &rec.LastError, &rec.RunAt)
	rec.Status = Status(status)
	return rec, err
}

// Insert stores a pending record. A record with the same idempotency key is
// returned instead with created=false.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (Record, bool, error) {
	if r == nil || r.pool == nil {
		return Record{}, false, errors.New(errRepoNotConfigured)
	}
	if p.IdempotencyKey == "" {
		return Record{}, false, fmt.Errorf("idempotency key is required")
	}
	if p.Recipient == "" {
		return Record{}, false, fmt.Errorf("recipient is required")
	}
	if p.RunAt.IsZero() {
		p.RunAt = time.Now().UTC()
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx, `
    INSERT INTO notification_outbox (idempotency_key, lead_id, channel, recipient, body, label, run_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (idempotency_key) DO NOTHING
    RETURNING`+recordColumns,
		p.IdempotencyKey, p.LeadID, ChannelWhatsApp, p.Recipient, p.Body, p.Label, p.RunAt,
	))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, err
	}

	rec, err = scanRecord(r.pool.QueryRow(ctx, `SELECT`+recordColumns+` FROM notification_outbox WHERE idempotency_key = $1`, p.IdempotencyKey))
	if err != nil {
		return Record{}, false, err
	}
	return rec, false, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, errors.New(errRepoNotConfigured)
	}
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT`+recordColumns+` FROM notification_outbox WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ClaimDue moves up to limit due pending records to enqueued and returns
// them. Concurrent claimers never receive the same record.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
    WITH cte AS (
        SELECT id
        FROM notification_outbox
        WHERE status = 'pending' AND run_at <= now()
        ORDER BY run_at ASC
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    )
    UPDATE notification_outbox o
    SET status = 'enqueued', updated_at = now()
    FROM cte
    WHERE o.id = cte.id
    RETURNING o.id, o.idempotency_key, o.lead_id, o.channel, o.recipient, o.body, o.label,
              o.status, o.attempts, o.last_error, o.run_at
  `, limit)
	if err != nil {
		return nil, err
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// MarkPending returns a record to the queue, due at runAt.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError string, runAt time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx, `
    UPDATE notification_outbox
    SET status = 'pending', last_error = $2, run_at = $3, updated_at = now()
    WHERE id = $1
  `, id, lastError, runAt)
	return err
}

// MarkProcessing claims a record for delivery and counts the attempt. It
// reports false when the record is already delivered, failed or being
// delivered elsewhere.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) (Record, bool, error) {
	if r == nil || r.pool == nil {
		return Record{}, false, errors.New(errRepoNotConfigured)
	}
	rec, err := scanRecord(r.pool.QueryRow(ctx, `
    UPDATE notification_outbox
    SET status = 'processing', attempts = attempts + 1, updated_at = now()
    WHERE id = $1 AND status IN ('pending', 'enqueued')
    RETURNING`+recordColumns,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx, `
    UPDATE notification_outbox
    SET status = 'succeeded', last_error = '', updated_at = now()
    WHERE id = $1
  `, id)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx, `
    UPDATE notification_outbox
    SET status = 'failed', last_error = $2, updated_at = now()
    WHERE id = $1
  `, id, lastError)
	return err
}
