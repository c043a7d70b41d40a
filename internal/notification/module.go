// Package notification sends customer messages in response to lead status
// changes. Domain modules publish events; this module owns the composition,
// the outbox and the delivery retries.
package notification

import (
	"context"

	"crm_workflow_backend/internal/events"
	apphttp "crm_workflow_backend/internal/http"
	identitysvc "crm_workflow_backend/internal/identity/service"
	"crm_workflow_backend/internal/leads"
	leadsdomain "crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/notification/adapters"
	"crm_workflow_backend/internal/notification/engine"
	"crm_workflow_backend/internal/notification/handler"
	"crm_workflow_backend/internal/notification/outbox"
	"crm_workflow_backend/internal/notification/repository"
	"crm_workflow_backend/internal/notification/settings"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Messenger is the messages service surface the engine needs.
type Messenger interface {
	engine.Sender
	engine.MessageLookup
}

// Module handles notification event subscriptions and admin routes.
type Module struct {
	engine  *engine.Engine
	outbox  *outbox.Repository
	handler *handler.HTTPHandler
	log     *logger.Logger
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator, workflow *config.WorkflowDefaults, reader *leads.Reader, identity *identitysvc.Service, messenger Messenger, log *logger.Logger) *Module {
	settingsRepo := repository.New(pool)
	outboxRepo := outbox.New(pool)

	eng := engine.New(engine.Dependencies{
		Leads:    reader,
		Contacts: adapters.NewContactPhones(identity),
		Messages: messenger,
		Sender:   messenger,
		Settings: settingsRepo,
		Outbox:   outboxRepo,
	}, workflow, log)

	return &Module{
		engine:  eng,
		outbox:  outboxRepo,
		handler: handler.NewHTTPHandler(settings.New(settingsRepo, log), val),
		log:     log,
	}
}

func (m *Module) Name() string {
	return "notification"
}

// Outbox exposes the outbox for the scheduler's dispatcher.
func (m *Module) Outbox() *outbox.Repository {
	return m.outbox
}

// NotifyPreparation implements the leads preparation notifier.
func (m *Module) NotifyPreparation(ctx context.Context, lead leadsdomain.Lead, deal leadsdomain.Deal, lines []leadsdomain.ProductLine) error {
	return m.engine.NotifyPreparation(ctx, lead, deal, lines)
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method. Notification
// failures never fail the publisher.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadStatusChanged:
		return m.handleLeadStatusChanged(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleOutboxDue(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleLeadStatusChanged(ctx context.Context, e events.LeadStatusChanged) error {
	outcome, err := m.engine.HandleStatusChanged(ctx, engine.StatusChange{
		LeadID:     e.LeadID,
		LogEntryID: e.LogEntryID,
		OldStatus:  e.OldStatus,
		NewStatus:  e.NewStatus,
		Silent:     e.Silent,
	})
	if err != nil {
		m.log.Error("status notification failed", "leadId", e.LeadID, "status", e.NewStatus, "error", err)
		return nil
	}
	m.log.Info("status notification handled", "leadId", e.LeadID, "status", e.NewStatus, "outcome", string(outcome))
	return nil
}

func (m *Module) handleOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	if _, err := m.engine.Deliver(ctx, e.OutboxID); err != nil {
		m.log.Warn("outbox delivery attempt failed", "outboxId", e.OutboxID, "error", err)
	}
	return nil
}

var _ apphttp.Module = (*Module)(nil)
