package repository

import (
	"context"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadReader provides read operations for leads.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	GetByName(ctx context.Context, name string) (domain.Lead, error)
	FindByIdentity(ctx context.Context, key IdentityKey) (domain.Lead, error)
	FindLatestByMobile(ctx context.Context, digits string) (domain.Lead, error)
	ListByStatus(ctx context.Context, status string) ([]domain.Lead, error)
}

// LeadWriter provides write operations for leads.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
}

// StatusLog is the status save path and its audit trail.
type StatusLog interface {
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (StatusChange, error)
	LatestTransitionInto(ctx context.Context, leadID uuid.UUID, status string) (domain.StatusLogEntry, error)
	ListStatusLog(ctx context.Context, leadID uuid.UUID) ([]domain.StatusLogEntry, error)
}

// LineStore manages product lines of leads and deals.
type LineStore interface {
	ListLeadProducts(ctx context.Context, leadID uuid.UUID) ([]domain.ProductLine, error)
	ReplaceLeadProducts(ctx context.Context, leadID uuid.UUID, lines []domain.ProductLine, totals domain.Totals) error
	ListDealProducts(ctx context.Context, dealID uuid.UUID) ([]domain.ProductLine, error)
	ReplaceDealProducts(ctx context.Context, dealID uuid.UUID, lines []domain.ProductLine, totals domain.Totals) error
}

// DealStore manages deals and their contacts.
type DealStore interface {
	GetDeal(ctx context.Context, id uuid.UUID) (domain.Deal, error)
	CreateDeal(ctx context.Context, params CreateDealParams) (domain.Deal, error)
	AddDealContact(ctx context.Context, dealID, contactID uuid.UUID, primary bool) error
	DealContactIDs(ctx context.Context, dealID uuid.UUID) ([]uuid.UUID, error)
	FindLatestDealByMobile(ctx context.Context, digits string) (domain.Deal, error)
}

// ConversionLog records saga step outcomes.
type ConversionLog interface {
	ListConversionSteps(ctx context.Context, leadID uuid.UUID) (map[domain.ConversionStep]domain.StepRecord, error)
	RecordConversionStep(ctx context.Context, leadID uuid.UUID, rec domain.StepRecord) error
}

// StatusCatalog manages the runtime status vocabulary.
type StatusCatalog interface {
	ListStatuses(ctx context.Context, entity domain.EntityKind) ([]domain.Status, error)
	CreateStatus(ctx context.Context, entity domain.EntityKind, name string, position int, color string) (domain.Status, error)
}

// LeadsRepository composes every leads interface.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	StatusLog
	LineStore
	DealStore
	ConversionLog
	StatusCatalog
}

var _ LeadsRepository = (*Repository)(nil)
