package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPaymentSweep = "leads.payment_sweep"

const TaskNotificationOutboxDue = "notification.outbox.due"

// PaymentSweepPayload is constant so that asynq uniqueness covers every
// sweep enqueued within the window.
type PaymentSweepPayload struct{}

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

func NewPaymentSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(PaymentSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentSweep, data), nil
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}
