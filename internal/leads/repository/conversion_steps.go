package repository

import (
	"context"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListConversionSteps returns the recorded saga steps of a lead keyed by
// step name.
func (r *Repository) ListConversionSteps(ctx context.Context, leadID uuid.UUID) (map[domain.ConversionStep]domain.StepRecord, error) {
	rows, err := r.pool.Query(ctx, `
    SELECT step, state, ref_id, error, attempts, updated_at
    FROM conversion_steps
    WHERE lead_id = $1
  `, leadID)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StepRecord, error) {
		var rec domain.StepRecord
		err := row.Scan(&rec.Step, &rec.State, &rec.RefID, &rec.Error, &rec.Attempts, &rec.UpdatedAt)
		return rec, err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[domain.ConversionStep]domain.StepRecord, len(records))
	for _, rec := range records {
		out[rec.Step] = rec
	}
	return out, nil
}

// RecordConversionStep upserts the outcome of a saga step, counting attempts.
func (r *Repository) RecordConversionStep(ctx context.Context, leadID uuid.UUID, rec domain.StepRecord) error {
	_, err := r.pool.Exec(ctx, `
    INSERT INTO conversion_steps (lead_id, step, state, ref_id, error, attempts, updated_at)
    VALUES ($1, $2, $3, $4, $5, 1, now())
    ON CONFLICT (lead_id, step) DO UPDATE
    SET state = EXCLUDED.state,
        ref_id = COALESCE(EXCLUDED.ref_id, conversion_steps.ref_id),
        error = EXCLUDED.error,
        attempts = conversion_steps.attempts + 1,
        updated_at = now()
  `, leadID, rec.Step, rec.State, rec.RefID, rec.Error)
	return err
}
