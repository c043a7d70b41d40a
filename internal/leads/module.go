// Package leads provides the lead management bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"crm_workflow_backend/internal/events"
	apphttp "crm_workflow_backend/internal/http"
	"crm_workflow_backend/internal/leads/conversion"
	"crm_workflow_backend/internal/leads/escalation"
	"crm_workflow_backend/internal/leads/handler"
	"crm_workflow_backend/internal/leads/intake"
	"crm_workflow_backend/internal/leads/management"
	"crm_workflow_backend/internal/leads/ports"
	"crm_workflow_backend/internal/leads/repository"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies are the collaborators owned by other modules.
type Dependencies struct {
	Identity ports.IdentityProvider
	Messages ports.MessageLookup
	// Notifier may be nil; conversion then skips the preparation message.
	Notifier ports.PreparationNotifier
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	management *management.Service
	intake     *intake.Service
	conversion *conversion.Service
	escalation *escalation.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, workflow *config.WorkflowDefaults, deps Dependencies, log *logger.Logger) *Module {
	repo := repository.New(pool)
	refs := workflow.Statuses

	mgmtSvc := management.New(repo, eventBus, workflow.Aliases, log)
	intakeSvc := intake.New(repo, deps.Identity, deps.Messages, eventBus, val, refs.LeadInitial, log)
	conversionSvc := conversion.New(repo, mgmtSvc, deps.Identity, deps.Notifier, eventBus, conversion.Statuses{
		Accepted:    refs.Accepted,
		DealInitial: refs.DealInitial,
	}, log)
	escalationSvc := escalation.New(repo, mgmtSvc, eventBus, escalation.Config{
		AwaitingPayment: refs.AwaitingPayment,
		NotPaid:         refs.NotPaid,
		After:           workflow.EscalationAfter(),
	}, log)

	return &Module{
		handler:    handler.New(mgmtSvc, intakeSvc, conversionSvc, val),
		management: mgmtSvc,
		intake:     intakeSvc,
		conversion: conversionSvc,
		escalation: escalationSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// EscalationService returns the payment sweeper for the scheduler.
func (m *Module) EscalationService() *escalation.Service {
	return m.escalation
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
