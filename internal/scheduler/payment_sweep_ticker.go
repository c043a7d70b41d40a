package scheduler

import (
	"context"
	"time"

	"crm_workflow_backend/platform/logger"
)

// PaymentSweepTicker enqueues a payment sweep every interval. Every
// scheduler replica may run one; asynq uniqueness keeps a single sweep
// queued per window.
type PaymentSweepTicker struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewPaymentSweepTicker(client *Client, interval time.Duration, log *logger.Logger) *PaymentSweepTicker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PaymentSweepTicker{client: client, interval: interval, log: log}
}

func (t *PaymentSweepTicker) Run(ctx context.Context) {
	if t == nil || t.client == nil {
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		t.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *PaymentSweepTicker) tick(ctx context.Context) {
	added, err := t.client.EnqueuePaymentSweep(ctx, t.interval)
	if err != nil {
		t.log.Warn("payment sweep enqueue failed", "error", err)
		return
	}
	if !added {
		t.log.Debug("payment sweep already queued")
	}
}
