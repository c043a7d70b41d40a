// Package identity provides the identity bounded context module.
package identity

import (
	"context"

	"crm_workflow_backend/internal/events"
	apphttp "crm_workflow_backend/internal/http"
	"crm_workflow_backend/internal/identity/handler"
	"crm_workflow_backend/internal/identity/repository"
	"crm_workflow_backend/internal/identity/service"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	log     *logger.Logger
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc, log: log}
}

func (m *Module) Name() string {
	return "identity"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// RegisterHandlers subscribes the ingestion hook to inbound messages.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.MessageReceived{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.MessageReceived:
		if err := m.service.EnsureContactFromMessage(ctx, "Incoming", e.From); err != nil {
			m.log.Warn("ensure contact from message failed", "messageId", e.MessageID, "error", err)
		}
		return nil
	default:
		return nil
	}
}

var _ apphttp.Module = (*Module)(nil)
