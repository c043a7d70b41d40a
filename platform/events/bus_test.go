package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"crm_workflow_backend/platform/logger"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncRunsHandlersInOrderAndJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var order []int
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 1)
		return errors.New("first failed")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 2)
		return nil
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if err == nil {
		t.Fatalf("expected joined error from first handler")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected both handlers in order, got %v", order)
	}
}

func TestPublishRecoversPanicsAndWaits(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var calls atomic.Int32
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls.Add(1)
		panic("boom")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	cancel()
	bus.Wait()

	if calls.Load() != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls.Load())
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()
	if err := bus.PublishSync(context.Background(), pingEvent{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
