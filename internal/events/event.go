// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_workflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when intake creates a new lead.
type LeadCreated struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	LeadName     string    `json:"leadName"`
	ContactID    uuid.UUID `json:"contactId"`
	Organization string    `json:"organization"`
	Source       string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStatusChanged is published after a status change has been committed
// together with its log entry. LogEntryID identifies the change uniquely.
type LeadStatusChanged struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	LogEntryID uuid.UUID `json:"logEntryId"`
	OldStatus  string    `json:"oldStatus"`
	NewStatus  string    `json:"newStatus"`
	ChangedBy  string    `json:"changedBy,omitempty"`
	// Silent changes are not announced to the customer.
	Silent     bool      `json:"silent,omitempty"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadConverted is published once every conversion step has completed.
type LeadConverted struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	DealID    uuid.UUID `json:"dealId"`
	DealName  string    `json:"dealName"`
	ContactID uuid.UUID `json:"contactId"`
}

func (e LeadConverted) EventName() string { return "leads.lead.converted" }

// LeadPaymentEscalated is published when the sweeper moves a lead from
// awaiting payment to not paid.
type LeadPaymentEscalated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	LeadName string    `json:"leadName"`
}

func (e LeadPaymentEscalated) EventName() string { return "leads.payment.escalated" }

// =============================================================================
// Messaging Domain Events
// =============================================================================

// MessageReceived is published after an inbound chat message was stored.
type MessageReceived struct {
	BaseEvent
	MessageID   uuid.UUID `json:"messageId"`
	ExternalID  string    `json:"externalId"`
	From        string    `json:"from"`
	ProfileName string    `json:"profileName,omitempty"`
	ContentType string    `json:"contentType"`
}

func (e MessageReceived) EventName() string { return "messages.received" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler when an outbox record
// is due for another delivery attempt.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
