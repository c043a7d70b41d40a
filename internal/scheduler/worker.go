package scheduler

import (
	"context"
	"fmt"
	"time"

	"crm_workflow_backend/internal/email"
	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/escalation"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Sweeper escalates leads that waited too long for payment.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (escalation.SweepReport, error)
}

type WorkerDeps struct {
	Sweeper   Sweeper
	Digest    email.Sender
	Bus       events.Publisher
	Threshold time.Duration
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	sweeper   Sweeper
	digest    email.Sender
	bus       events.Publisher
	threshold time.Duration
	now       func() time.Time
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, deps WorkerDeps, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(deps, log)
	w.server = server
	return w, nil
}

func newWorker(deps WorkerDeps, log *logger.Logger) *Worker {
	digest := deps.Digest
	if digest == nil {
		digest = email.NoopSender{}
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		mux:       mux,
		sweeper:   deps.Sweeper,
		digest:    digest,
		bus:       deps.Bus,
		threshold: deps.Threshold,
		now:       time.Now,
		log:       log,
	}

	mux.HandleFunc(TaskPaymentSweep, w.handlePaymentSweep)
	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)

	return w
}

func (w *Worker) handlePaymentSweep(ctx context.Context, _ *asynq.Task) error {
	if w.sweeper == nil {
		return nil
	}

	now := w.now()
	report, err := w.sweeper.Sweep(ctx, now)
	if err != nil {
		return err
	}

	w.log.Info("payment sweep finished",
		"checked", report.Checked,
		"escalated", len(report.Escalated),
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	if len(report.Escalated) == 0 {
		return nil
	}

	entries := make([]email.DigestEntry, 0, len(report.Escalated))
	for _, lead := range report.Escalated {
		entries = append(entries, email.DigestEntry{
			OrderNumber:   domain.OrderNumber(lead.Name),
			Customer:      lead.Customer,
			AwaitingSince: lead.AwaitingSince,
		})
	}
	if err := w.digest.SendEscalationDigest(ctx, email.Digest{
		Entries:    entries,
		Threshold:  w.threshold,
		Checked:    report.Checked,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		ReportedAt: now,
	}); err != nil {
		w.log.Warn("escalation digest failed", "escalated", len(entries), "error", err)
	}
	return nil
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
