package scheduler

import (
	"context"
	"time"

	"crm_workflow_backend/internal/notification/outbox"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
)

const outboxClaimBatch = 50

// OutboxClaimer hands out due outbox records.
type OutboxClaimer interface {
	ClaimDue(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError string, runAt time.Time) error
}

// NotificationOutboxDispatcher moves due outbox records onto the asynq
// queue. The worker then publishes NotificationOutboxDue for each.
type NotificationOutboxDispatcher struct {
	client   *Client
	repo     OutboxClaimer
	interval time.Duration
	log      *logger.Logger
}

func NewNotificationOutboxDispatcher(client *Client, repo OutboxClaimer, interval time.Duration, log *logger.Logger) *NotificationOutboxDispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &NotificationOutboxDispatcher{client: client, repo: repo, interval: interval, log: log}
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := d.dispatch(ctx); err != nil {
			d.log.Warn("outbox claim failed", "error", err)
		}
	}
}

// dispatch claims one batch and enqueues it. Records that cannot be
// enqueued go back to pending with their original run time.
func (d *NotificationOutboxDispatcher) dispatch(ctx context.Context) (int, error) {
	records, err := d.repo.ClaimDue(ctx, outboxClaimBatch)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, rec := range records {
		if err := d.client.EnqueueNotificationOutboxDue(ctx, rec.ID, rec.RunAt); err != nil {
			d.log.Warn("outbox enqueue failed", "outboxId", rec.ID, "error", err)
			if markErr := d.repo.MarkPending(ctx, rec.ID, err.Error(), rec.RunAt); markErr != nil {
				d.log.Error("outbox reset failed", "outboxId", rec.ID, "error", markErr)
			}
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
