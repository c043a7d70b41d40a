// Package intake creates leads idempotently from order forms and chat
// conversations.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/ports"
	"crm_workflow_backend/internal/leads/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"
	"crm_workflow_backend/platform/validator"

	"github.com/google/uuid"
)

// Repository is what intake needs from lead storage.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
}

// LeadIntake is an incoming request for a lead.
type LeadIntake struct {
	FirstName       string
	LastName        string
	Organization    string
	Email           string
	MobileNo        string
	Phone           string
	Website         string
	Source          string
	LeadOwner       string
	DeliveryDate    *time.Time
	DeliveryAddress string
	OrderDate       *time.Time
	OrderDetails    json.RawMessage
	// ReferenceType and ReferenceID point at the conversation the request
	// came from; its latest inbound sender fills a missing phone.
	ReferenceType string
	ReferenceID   *uuid.UUID
}

type Service struct {
	repo          Repository
	identity      ports.IdentityProvider
	messages      ports.MessageLookup
	bus           events.Publisher
	val           *validator.Validator
	initialStatus string
	log           *logger.Logger
}

func New(repo Repository, identity ports.IdentityProvider, messages ports.MessageLookup, bus events.Publisher, val *validator.Validator, initialStatus string, log *logger.Logger) *Service {
	return &Service{
		repo:          repo,
		identity:      identity,
		messages:      messages,
		bus:           bus,
		val:           val,
		initialStatus: initialStatus,
		log:           log.WithComponent("leads.intake"),
	}
}

// FindOrCreateLead returns the lead matching (first name, last name,
// organization) plus email, or mobile when no email is given. A match is
// returned unchanged with existed set. The organization is ensured and the
// contact owning the phone is linked to it whether or not a lead is created.
func (s *Service) FindOrCreateLead(ctx context.Context, in LeadIntake) (domain.Lead, bool, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Organization = strings.TrimSpace(in.Organization)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.FirstName == "" || in.LastName == "" {
		return domain.Lead{}, false, apperr.Validation("first name and last name are required")
	}
	if in.Organization == "" {
		return domain.Lead{}, false, apperr.Validation("organization is required")
	}
	if in.Email != "" && !s.val.Email(in.Email) {
		return domain.Lead{}, false, apperr.Validation("invalid email address")
	}

	if phone.Digits(in.MobileNo) == "" && phone.Digits(in.Phone) == "" && in.ReferenceID != nil {
		inferred, err := s.messages.LatestIncomingPhone(ctx, in.ReferenceType, *in.ReferenceID)
		if err != nil {
			s.log.Warn("could not infer phone from conversation", "referenceId", *in.ReferenceID, "error", err)
		}
		in.MobileNo = inferred
	}
	digits := phone.Digits(in.MobileNo)
	mobile := ""
	if digits != "" {
		mobile = phone.Display(digits)
	}

	org, err := s.identity.EnsureOrganization(ctx, ports.OrganizationInput{Name: in.Organization, Website: in.Website})
	if err != nil {
		return domain.Lead{}, false, err
	}
	if digits != "" || in.Email != "" {
		if err := s.identity.LinkContactToOrganization(ctx, digits, in.Email, org.ID); err != nil {
			return domain.Lead{}, false, err
		}
	}

	existing, err := s.repo.FindByIdentity(ctx, repository.IdentityKey{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Organization: org.Name,
		Email:        in.Email,
		MobileDigits: digits,
	})
	if err == nil {
		s.log.Debug("lead already exists", "leadId", existing.ID)
		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, false, apperr.Internal("find lead", err)
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           in.Email,
		MobileNo:        mobile,
		Phone:           phone.Display(in.Phone),
		Organization:    org.Name,
		Website:         strings.TrimSpace(in.Website),
		Source:          strings.TrimSpace(in.Source),
		Status:          s.initialStatus,
		LeadOwner:       strings.TrimSpace(in.LeadOwner),
		DeliveryDate:    in.DeliveryDate,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		OrderDate:       in.OrderDate,
		OrderDetails:    in.OrderDetails,
	})
	if err != nil {
		return domain.Lead{}, false, apperr.Internal("create lead", err)
	}

	s.log.Info("lead created", "leadId", lead.ID, "name", lead.Name)
	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		LeadName:     lead.Name,
		Organization: lead.Organization,
		Source:       lead.Source,
	})
	return lead, false, nil
}
