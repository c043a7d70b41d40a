// Package management owns lead writes that other features build on: the
// status save path, product lines and the status vocabulary.
package management

import (
	"context"
	"errors"
	"strings"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.LeadReader
	repository.StatusLog
	repository.LineStore
	repository.StatusCatalog
}

// Service handles lead status changes, product lines and statuses.
type Service struct {
	repo    Repository
	bus     events.Publisher
	aliases map[string]string
	log     *logger.Logger
}

// New creates a new lead management service. aliases maps alternative
// spellings of status names onto the vocabulary.
func New(repo Repository, bus events.Publisher, aliases map[string]string, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, aliases: aliases, log: log.WithComponent("leads.management")}
}

// StatusUpdate is one request to move a lead to a new status. When
// ExpectedStatus is set the write only happens if the lead still has it.
// SkipNotification marks the change as already announced to the customer.
type StatusUpdate struct {
	LeadID              uuid.UUID
	Status              string
	ExpectedStatus      string
	ChangedBy           string
	SkipNotification    bool
	Converted           *bool
	CommunicationStatus *string
}

// UpdateStatus is the only write path for lead statuses. It commits the new
// status with its log entry, then runs status-change subscribers before
// returning. Writing the current status changes nothing else.
func (s *Service) UpdateStatus(ctx context.Context, req StatusUpdate) (domain.Lead, error) {
	status, err := s.resolveStatus(ctx, domain.EntityLead, req.Status)
	if err != nil {
		return domain.Lead{}, err
	}

	change, err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		LeadID:              req.LeadID,
		Status:              status,
		ExpectedStatus:      req.ExpectedStatus,
		ChangedBy:           req.ChangedBy,
		Converted:           req.Converted,
		CommunicationStatus: req.CommunicationStatus,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, apperr.NotFound("lead not found")
		}
		if errors.Is(err, repository.ErrStatusChanged) {
			return domain.Lead{}, apperr.Wrap(apperr.KindConflict, "lead status was changed by someone else", err)
		}
		return domain.Lead{}, apperr.Internal("update lead status", err).WithOp("management.UpdateStatus")
	}

	if change.Entry != nil {
		err := s.bus.PublishSync(ctx, events.LeadStatusChanged{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     change.After.ID,
			LogEntryID: change.Entry.ID,
			OldStatus:  change.Entry.FromStatus,
			NewStatus:  change.Entry.ToStatus,
			ChangedBy:  change.Entry.ChangedBy,
			Silent:     req.SkipNotification,
		})
		if err != nil {
			s.log.Warn("status change subscriber failed", "leadId", change.After.ID, "status", status, "error", err)
		}
	}

	return change.After, nil
}

// GetLead returns a lead by id.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, apperr.Internal("load lead", err)
	}
	return lead, nil
}

// StatusHistory returns the status log of a lead, oldest first.
func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]domain.StatusLogEntry, error) {
	if _, err := s.GetLead(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListStatusLog(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load status log", err)
	}
	return entries, nil
}

// SetProducts replaces the product lines of a lead, recomputing every line
// and the lead totals.
func (s *Service) SetProducts(ctx context.Context, leadID uuid.UUID, lines []domain.ProductLine) ([]domain.ProductLine, domain.Totals, error) {
	for _, line := range lines {
		if line.Qty < 0 || line.Rate < 0 {
			return nil, domain.Totals{}, apperr.Validation("quantity and rate must not be negative")
		}
		if line.DiscountPercentage < 0 || line.DiscountPercentage > 100 {
			return nil, domain.Totals{}, apperr.Validation("discount percentage must be between 0 and 100")
		}
	}

	computed := domain.ComputeLines(lines)
	totals := domain.ComputeTotals(computed)
	if err := s.repo.ReplaceLeadProducts(ctx, leadID, computed, totals); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Totals{}, apperr.NotFound("lead not found")
		}
		return nil, domain.Totals{}, apperr.Internal("replace lead products", err)
	}
	return computed, totals, nil
}

// Products lists the product lines of a lead.
func (s *Service) Products(ctx context.Context, leadID uuid.UUID) ([]domain.ProductLine, error) {
	lines, err := s.repo.ListLeadProducts(ctx, leadID)
	if err != nil {
		return nil, apperr.Internal("list lead products", err)
	}
	return lines, nil
}

// Statuses lists the vocabulary of an entity kind.
func (s *Service) Statuses(ctx context.Context, entity domain.EntityKind) ([]domain.Status, error) {
	statuses, err := s.repo.ListStatuses(ctx, entity)
	if err != nil {
		return nil, apperr.Internal("list statuses", err)
	}
	return statuses, nil
}

// CreateStatus adds a status to a vocabulary. Lead statuses get an enabled
// notification setting.
func (s *Service) CreateStatus(ctx context.Context, entity domain.EntityKind, name string, position int, color string) (domain.Status, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Status{}, apperr.Validation("status name is required")
	}
	if entity != domain.EntityLead && entity != domain.EntityDeal {
		return domain.Status{}, apperr.Validation("entity must be lead or deal")
	}
	if domain.StatusSlug(name) == "" {
		return domain.Status{}, apperr.Validation("status name must contain letters or digits")
	}

	status, err := s.repo.CreateStatus(ctx, entity, name, position, color)
	if errors.Is(err, repository.ErrStatusExists) {
		return domain.Status{}, apperr.Conflict("status already exists")
	}
	if err != nil {
		return domain.Status{}, apperr.Internal("create status", err)
	}
	return status, nil
}

// Catalog returns the current vocabulary of an entity kind with the
// configured aliases.
func (s *Service) Catalog(ctx context.Context, entity domain.EntityKind) (*domain.StatusCatalog, error) {
	statuses, err := s.repo.ListStatuses(ctx, entity)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = st.Name
	}
	return domain.NewStatusCatalog(names, s.aliases), nil
}

func (s *Service) resolveStatus(ctx context.Context, entity domain.EntityKind, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", apperr.Validation("status is required")
	}
	catalog, err := s.Catalog(ctx, entity)
	if err != nil {
		return "", apperr.Internal("load status vocabulary", err)
	}
	name, ok := catalog.Normalize(raw)
	if !ok {
		return "", apperr.Validation("unknown status: " + strings.TrimSpace(raw))
	}
	return name, nil
}
