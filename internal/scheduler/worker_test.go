package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm_workflow_backend/internal/email"
	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/escalation"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeSweeper struct {
	report escalation.SweepReport
	err    error
	calls  []time.Time
}

func (f *fakeSweeper) Sweep(_ context.Context, now time.Time) (escalation.SweepReport, error) {
	f.calls = append(f.calls, now)
	return f.report, f.err
}

type recordingDigest struct {
	digests []email.Digest
	err     error
}

func (r *recordingDigest) SendEscalationDigest(_ context.Context, d email.Digest) error {
	r.digests = append(r.digests, d)
	return r.err
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func TestPaymentSweepSendsDigestForEscalatedLeads(t *testing.T) {
	since := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{report: escalation.SweepReport{
		Checked:   3,
		Skipped:   1,
		Escalated: []escalation.EscalatedLead{{ID: uuid.New(), Name: "CRM-LEAD-2025-00012", Customer: "Anna", AwaitingSince: since}},
	}}
	digest := &recordingDigest{}
	w := newWorker(WorkerDeps{Sweeper: sweeper, Digest: digest, Threshold: 72 * time.Hour}, logger.Nop())
	now := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.handlePaymentSweep(context.Background(), asynq.NewTask(TaskPaymentSweep, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sweeper.calls) != 1 || !sweeper.calls[0].Equal(now) {
		t.Fatalf("expected one sweep at %s, got %v", now, sweeper.calls)
	}
	if len(digest.digests) != 1 {
		t.Fatalf("expected one digest, got %d", len(digest.digests))
	}
	got := digest.digests[0]
	if got.Checked != 3 || got.Skipped != 1 || got.Threshold != 72*time.Hour {
		t.Fatalf("unexpected digest counts %+v", got)
	}
	if got.Entries[0].OrderNumber != "25-00012" || !got.Entries[0].AwaitingSince.Equal(since) {
		t.Fatalf("unexpected digest entry %+v", got.Entries[0])
	}
}

func TestPaymentSweepWithoutEscalationsSendsNoDigest(t *testing.T) {
	digest := &recordingDigest{}
	w := newWorker(WorkerDeps{Sweeper: &fakeSweeper{report: escalation.SweepReport{Checked: 2, Skipped: 2}}, Digest: digest}, logger.Nop())

	if err := w.handlePaymentSweep(context.Background(), asynq.NewTask(TaskPaymentSweep, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(digest.digests) != 0 {
		t.Fatalf("expected no digest")
	}
}

func TestPaymentSweepDigestFailureIsNotATaskFailure(t *testing.T) {
	sweeper := &fakeSweeper{report: escalation.SweepReport{Escalated: []escalation.EscalatedLead{{Name: "L"}}}}
	w := newWorker(WorkerDeps{Sweeper: sweeper, Digest: &recordingDigest{err: errors.New("smtp down")}}, logger.Nop())

	if err := w.handlePaymentSweep(context.Background(), asynq.NewTask(TaskPaymentSweep, nil)); err != nil {
		t.Fatalf("expected digest failure to be swallowed, got %v", err)
	}
}

func TestPaymentSweepErrorIsReturned(t *testing.T) {
	w := newWorker(WorkerDeps{Sweeper: &fakeSweeper{err: errors.New("db down")}}, logger.Nop())

	if err := w.handlePaymentSweep(context.Background(), asynq.NewTask(TaskPaymentSweep, nil)); err == nil {
		t.Fatalf("expected sweep error")
	}
}

func TestNotificationOutboxDuePublishesEvent(t *testing.T) {
	bus := &recordingBus{}
	w := newWorker(WorkerDeps{Bus: bus}, logger.Nop())
	id := uuid.New()

	task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{OutboxID: id.String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.handleNotificationOutboxDue(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.published))
	}
	due, ok := bus.published[0].(events.NotificationOutboxDue)
	if !ok || due.OutboxID != id {
		t.Fatalf("unexpected event %#v", bus.published[0])
	}
}

func TestNotificationOutboxDueRejectsBadPayload(t *testing.T) {
	w := newWorker(WorkerDeps{Bus: &recordingBus{}}, logger.Nop())

	if err := w.handleNotificationOutboxDue(context.Background(), asynq.NewTask(TaskNotificationOutboxDue, []byte(`{"outboxId":"nope"}`))); err == nil {
		t.Fatalf("expected invalid id error")
	}
}
