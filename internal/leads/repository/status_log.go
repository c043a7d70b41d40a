package repository

import (
	"context"
	"errors"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpdateStatusParams describes one status write. Converted and
// CommunicationStatus are only written when set. A non-empty
// ExpectedStatus must match the locked row or nothing is written.
type UpdateStatusParams struct {
	LeadID              uuid.UUID
	Status              string
	ExpectedStatus      string
	ChangedBy           string
	Converted           *bool
	CommunicationStatus *string
}

// StatusChange is the outcome of UpdateStatus. Entry is nil when the lead
// already had the requested status.
type StatusChange struct {
	Before domain.Lead
	After  domain.Lead
	Entry  *domain.StatusLogEntry
}

// UpdateStatus locks the lead row, writes the new status and appends the
// log entry in one transaction. Writing the current status appends nothing.
func (r *Repository) UpdateStatus(ctx context.Context, params UpdateStatusParams) (StatusChange, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return StatusChange{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := scanLead(tx.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, params.LeadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusChange{}, ErrNotFound
	}
	if err != nil {
		return StatusChange{}, err
	}
	if params.ExpectedStatus != "" && before.Status != params.ExpectedStatus {
		return StatusChange{}, ErrStatusChanged
	}

	after, err := scanLead(tx.QueryRow(ctx, `
    UPDATE leads
    SET status = $2,
        converted = COALESCE($3, converted),
        communication_status = COALESCE($4, communication_status),
        updated_at = now()
    WHERE id = $1
    RETURNING`+leadColumns,
		params.LeadID, params.Status, params.Converted, params.CommunicationStatus))
	if err != nil {
		return StatusChange{}, err
	}

	change := StatusChange{Before: before, After: after}
	if before.Status != params.Status {
		var entry domain.StatusLogEntry
		err = tx.QueryRow(ctx, `
    INSERT INTO lead_status_log (lead_id, from_status, to_status, changed_by)
    VALUES ($1, $2, $3, $4)
    RETURNING id, lead_id, from_status, to_status, changed_by, changed_at
  `, params.LeadID, before.Status, params.Status, params.ChangedBy).Scan(
			&entry.ID, &entry.LeadID, &entry.FromStatus, &entry.ToStatus, &entry.ChangedBy, &entry.ChangedAt,
		)
		if err != nil {
			return StatusChange{}, err
		}
		change.Entry = &entry
	}

	if err := tx.Commit(ctx); err != nil {
		return StatusChange{}, err
	}
	return change, nil
}

// LatestTransitionInto returns the most recent log entry whose target is
// status.
func (r *Repository) LatestTransitionInto(ctx context.Context, leadID uuid.UUID, status string) (domain.StatusLogEntry, error) {
	var entry domain.StatusLogEntry
	err := r.pool.QueryRow(ctx, `
    SELECT id, lead_id, from_status, to_status, changed_by, changed_at
    FROM lead_status_log
    WHERE lead_id = $1 AND to_status = $2
    ORDER BY changed_at DESC
    LIMIT 1
  `, leadID, status).Scan(&entry.ID, &entry.LeadID, &entry.FromStatus, &entry.ToStatus, &entry.ChangedBy, &entry.ChangedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StatusLogEntry{}, ErrNotFound
	}
	return entry, err
}

func (r *Repository) ListStatusLog(ctx context.Context, leadID uuid.UUID) ([]domain.StatusLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
    SELECT id, lead_id, from_status, to_status, changed_by, changed_at
    FROM lead_status_log
    WHERE lead_id = $1
    ORDER BY changed_at
  `, leadID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StatusLogEntry, error) {
		var e domain.StatusLogEntry
		err := row.Scan(&e.ID, &e.LeadID, &e.FromStatus, &e.ToStatus, &e.ChangedBy, &e.ChangedAt)
		return e, err
	})
}
