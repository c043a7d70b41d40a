// Package messages provides the chat messaging bounded context module.
package messages

import (
	"crm_workflow_backend/internal/events"
	apphttp "crm_workflow_backend/internal/http"
	identitysvc "crm_workflow_backend/internal/identity/service"
	"crm_workflow_backend/internal/leads"
	"crm_workflow_backend/internal/messages/adapters"
	"crm_workflow_backend/internal/messages/handler"
	"crm_workflow_backend/internal/messages/repository"
	"crm_workflow_backend/internal/messages/service"
	"crm_workflow_backend/internal/messages/thread"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires storage, delivery and thread reconciliation. channel may
// be nil when no gateway is configured.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Publisher,
	val *validator.Validator,
	channel service.Channel,
	reader *leads.Reader,
	identity *identitysvc.Service,
	replyFallback bool,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, channel, adapters.NewReferenceDirectory(reader), eventBus, log)
	reconciler := thread.New(repo, adapters.NewThreadDirectory(reader, identity), replyFallback, log)

	return &Module{
		handler: handler.New(svc, reconciler, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "messages"
}

// Service returns the messaging service used by other modules to send.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterWebhookRoutes(ctx.Webhooks)
}

var _ apphttp.Module = (*Module)(nil)
