// Package conversion turns an accepted lead into a deal. The conversion is
// a sequence of steps that each commit on their own; every outcome is
// recorded so that calling ConvertToDeal again resumes instead of
// duplicating rows.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/management"
	"crm_workflow_backend/internal/leads/ports"
	"crm_workflow_backend/internal/leads/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository is what conversion needs from lead storage.
type Repository interface {
	repository.LeadReader
	repository.LineStore
	repository.DealStore
	repository.ConversionLog
}

// StatusUpdater is the lead status save path.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, req management.StatusUpdate) (domain.Lead, error)
}

// Statuses names the statuses conversion writes.
type Statuses struct {
	Accepted    string
	DealInitial string
}

// DealOverrides replace copied lead values on the new deal.
type DealOverrides struct {
	DealOwner           *string
	Website             *string
	Territory           *string
	Industry            *string
	AnnualRevenue       *float64
	Source              *string
	ExpectedClosureDate *time.Time
	DeliveryDate        *time.Time
	DeliveryAddress     *string
	OrderDate           *time.Time
	OrderNotes          *string
}

// ConvertInput carries the optional caller choices.
type ConvertInput struct {
	ContactID      *uuid.UUID
	OrganizationID *uuid.UUID
	Overrides      DealOverrides
	ChangedBy      string
}

// ConversionResult reports what the conversion produced so far.
type ConversionResult struct {
	LeadID         uuid.UUID                                   `json:"leadId"`
	DealID         *uuid.UUID                                  `json:"dealId,omitempty"`
	DealName       string                                      `json:"dealName,omitempty"`
	ContactID      *uuid.UUID                                  `json:"contactId,omitempty"`
	OrganizationID *uuid.UUID                                  `json:"organizationId,omitempty"`
	Steps          map[domain.ConversionStep]domain.StepState `json:"steps"`
}

type Service struct {
	repo     Repository
	status   StatusUpdater
	identity ports.IdentityProvider
	notifier ports.PreparationNotifier
	bus      events.Publisher
	statuses Statuses
	log      *logger.Logger
}

// New creates the conversion service. notifier may be nil, in which case
// the preparation message is skipped.
func New(repo Repository, status StatusUpdater, identity ports.IdentityProvider, notifier ports.PreparationNotifier, bus events.Publisher, statuses Statuses, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		status:   status,
		identity: identity,
		notifier: notifier,
		bus:      bus,
		statuses: statuses,
		log:      log.WithComponent("leads.conversion"),
	}
}

// run holds the state of one ConvertToDeal call.
type run struct {
	lead   domain.Lead
	in     ConvertInput
	prior  map[domain.ConversionStep]domain.StepRecord
	result ConversionResult

	contact *ports.Contact
	deal    *domain.Deal
}

// ConvertToDeal converts the lead. Steps already completed by an earlier
// call are skipped and their recorded rows reused. A failing step stops the
// conversion; the returned error carries the partial result as details.
func (s *Service) ConvertToDeal(ctx context.Context, leadID uuid.UUID, in ConvertInput) (ConversionResult, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return ConversionResult{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return ConversionResult{}, apperr.Internal("load lead", err)
	}

	prior, err := s.repo.ListConversionSteps(ctx, leadID)
	if err != nil {
		return ConversionResult{}, apperr.Internal("load conversion steps", err)
	}

	r := &run{
		lead:  lead,
		in:    in,
		prior: prior,
		result: ConversionResult{
			LeadID: leadID,
			Steps:  make(map[domain.ConversionStep]domain.StepState, len(domain.ConversionSteps)),
		},
	}

	steps := []struct {
		name       domain.ConversionStep
		fn         func(context.Context, *run) (domain.StepState, *uuid.UUID, error)
		bestEffort bool
	}{
		{domain.StepContact, s.resolveContact, false},
		{domain.StepOrganization, s.resolveOrganization, false},
		{domain.StepDeal, s.createDeal, false},
		{domain.StepProducts, s.copyProducts, false},
		{domain.StepLeadStatus, s.acceptLead, false},
		{domain.StepNotify, s.notifyPreparation, true},
	}

	for _, step := range steps {
		if rec, ok := prior[step.name]; ok && rec.Done() {
			if err := s.restore(ctx, r, step.name, rec); err != nil {
				return r.result, s.fail(ctx, r, step.name, err)
			}
			r.result.Steps[step.name] = rec.State
			continue
		}

		state, ref, err := step.fn(ctx, r)
		if err != nil {
			if step.bestEffort {
				s.log.Warn("best-effort conversion step failed", "leadId", leadID, "step", step.name, "error", err)
				s.record(ctx, leadID, domain.StepRecord{Step: step.name, State: domain.StepFailed, Error: err.Error()})
				r.result.Steps[step.name] = domain.StepFailed
				continue
			}
			return r.result, s.fail(ctx, r, step.name, err)
		}

		s.record(ctx, leadID, domain.StepRecord{Step: step.name, State: state, RefID: ref})
		r.result.Steps[step.name] = state
	}

	s.log.Info("lead converted", "leadId", leadID, "dealId", r.deal.ID)
	event := events.LeadConverted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		DealID:    r.deal.ID,
		DealName:  r.deal.Name,
	}
	if r.contact != nil {
		event.ContactID = r.contact.ID
	}
	s.bus.Publish(ctx, event)

	return r.result, nil
}

// restore loads what a completed step produced so later steps can use it.
func (s *Service) restore(ctx context.Context, r *run, step domain.ConversionStep, rec domain.StepRecord) error {
	if rec.RefID == nil {
		return nil
	}
	switch step {
	case domain.StepContact:
		contact, err := s.identity.GetContact(ctx, *rec.RefID)
		if err != nil {
			return err
		}
		r.contact = &contact
		r.result.ContactID = &contact.ID
	case domain.StepOrganization:
		id := *rec.RefID
		r.result.OrganizationID = &id
	case domain.StepDeal:
		deal, err := s.repo.GetDeal(ctx, *rec.RefID)
		if err != nil {
			return err
		}
		r.setDeal(deal)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, r *run, step domain.ConversionStep, err error) error {
	s.log.Error("conversion step failed", "leadId", r.lead.ID, "step", step, "error", err)
	// A deal created before the failure is kept as the step's ref and reused
	// by the next attempt.
	var ref *uuid.UUID
	if step == domain.StepDeal && r.deal != nil {
		ref = &r.deal.ID
	}
	s.record(ctx, r.lead.ID, domain.StepRecord{Step: step, State: domain.StepFailed, RefID: ref, Error: err.Error()})
	r.result.Steps[step] = domain.StepFailed

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal && appErr.Kind != apperr.KindUnknown {
		return apperr.New(appErr.Kind, appErr.Message).WithOp("conversion." + string(step)).WithDetails(r.result)
	}
	return apperr.Internal(fmt.Sprintf("conversion failed at step %s", step), err).WithDetails(r.result)
}

func (s *Service) record(ctx context.Context, leadID uuid.UUID, rec domain.StepRecord) {
	if err := s.repo.RecordConversionStep(ctx, leadID, rec); err != nil {
		s.log.DatabaseError("record conversion step", err)
	}
}

func (s *Service) resolveContact(ctx context.Context, r *run) (domain.StepState, *uuid.UUID, error) {
	if r.in.ContactID != nil {
		contact, err := s.identity.GetContact(ctx, *r.in.ContactID)
		if err != nil {
			return "", nil, err
		}
		return r.useContact(contact)
	}

	lead := r.lead
	existing, err := s.identity.FindContact(ctx, lead.Email, lead.MobileNo, lead.Phone)
	if err != nil {
		return "", nil, err
	}
	if existing != nil {
		if prev, ok := r.prior[domain.StepContact]; ok && prev.RefID != nil && *prev.RefID == existing.ID {
			return r.useContact(*existing)
		}
		return "", nil, apperr.Conflict(fmt.Sprintf("contact %s already exists for this lead's email or phone; pass it explicitly to convert", existing.ID))
	}

	firstName := strings.TrimSpace(lead.FirstName)
	if firstName == "" {
		firstName = lead.Name
	}
	contact, err := s.identity.CreateContact(ctx, ports.NewContact{
		FirstName:   firstName,
		LastName:    lead.LastName,
		Email:       lead.Email,
		MobileNo:    lead.MobileNo,
		Phone:       lead.Phone,
		CompanyName: lead.Organization,
	})
	if err != nil {
		return "", nil, err
	}
	return r.useContact(contact)
}

func (r *run) useContact(contact ports.Contact) (domain.StepState, *uuid.UUID, error) {
	r.contact = &contact
	id := contact.ID
	r.result.ContactID = &id
	return domain.StepCompleted, &id, nil
}

func (s *Service) resolveOrganization(ctx context.Context, r *run) (domain.StepState, *uuid.UUID, error) {
	if r.in.OrganizationID != nil {
		id := *r.in.OrganizationID
		r.result.OrganizationID = &id
		return domain.StepCompleted, &id, nil
	}
	if strings.TrimSpace(r.lead.Organization) == "" {
		return domain.StepSkipped, nil, nil
	}

	org, err := s.identity.EnsureOrganization(ctx, ports.OrganizationInput{
		Name:          r.lead.Organization,
		Website:       r.lead.Website,
		Territory:     r.lead.Territory,
		Industry:      r.lead.Industry,
		AnnualRevenue: r.lead.AnnualRevenue,
	})
	if err != nil {
		return "", nil, err
	}
	r.result.OrganizationID = &org.ID
	return domain.StepCompleted, &org.ID, nil
}

func (s *Service) createDeal(ctx context.Context, r *run) (domain.StepState, *uuid.UUID, error) {
	// A deal row from an interrupted attempt is reused.
	if prev, ok := r.prior[domain.StepDeal]; ok && prev.RefID != nil {
		deal, err := s.repo.GetDeal(ctx, *prev.RefID)
		if err != nil {
			return "", nil, err
		}
		r.setDeal(deal)
	} else {
		deal, err := s.repo.CreateDeal(ctx, s.dealParams(r))
		if err != nil {
			return "", nil, err
		}
		r.setDeal(deal)
	}

	if r.contact != nil {
		if err := s.repo.AddDealContact(ctx, r.deal.ID, r.contact.ID, true); err != nil {
			return "", nil, err
		}
	}
	id := r.deal.ID
	return domain.StepCompleted, &id, nil
}

func (r *run) setDeal(deal domain.Deal) {
	r.deal = &deal
	id := deal.ID
	r.result.DealID = &id
	r.result.DealName = deal.Name
}

// dealParams copies the lead onto a new deal. Identity, audit, owner,
// status and contact fields are not copied; SLA fields only once the lead
// has a first response.
func (s *Service) dealParams(r *run) repository.CreateDealParams {
	lead := r.lead
	p := repository.CreateDealParams{
		LeadID:              lead.ID,
		OrganizationID:      r.result.OrganizationID,
		Status:              s.statuses.DealInitial,
		DealOwner:           lead.LeadOwner,
		Website:             lead.Website,
		Territory:           lead.Territory,
		Industry:            lead.Industry,
		AnnualRevenue:       lead.AnnualRevenue,
		Source:              lead.Source,
		ExpectedClosureDate: lead.DeliveryDate,
		DeliveryDate:        lead.DeliveryDate,
		DeliveryAddress:     lead.DeliveryAddress,
		OrderDate:           lead.OrderDate,
		OrderNotes:          lead.OrderNotes(),
	}
	if r.contact != nil {
		p.MobileNo = r.contact.MobileNo
	}
	if lead.HasFirstResponse() {
		p.SLA = lead.SLA
		p.SLAStatus = lead.SLAStatus
		p.SLACreation = lead.SLACreation
		p.ResponseBy = lead.ResponseBy
		p.FirstResponseTime = lead.FirstResponseTime
		p.FirstRespondedOn = lead.FirstRespondedOn
		p.CommunicationStatus = lead.CommunicationStatus
	}

	o := r.in.Overrides
	if o.DealOwner != nil {
		p.DealOwner = *o.DealOwner
	}
	if o.Website != nil {
		p.Website = *o.Website
	}
	if o.Territory != nil {
		p.Territory = *o.Territory
	}
	if o.Industry != nil {
		p.Industry = *o.Industry
	}
	if o.AnnualRevenue != nil {
		p.AnnualRevenue = *o.AnnualRevenue
	}
	if o.Source != nil {
		p.Source = *o.Source
	}
	if o.DeliveryDate != nil {
		p.DeliveryDate = o.DeliveryDate
		p.ExpectedClosureDate = o.DeliveryDate
	}
	if o.ExpectedClosureDate != nil {
		p.ExpectedClosureDate = o.ExpectedClosureDate
	}
	if o.DeliveryAddress != nil {
		p.DeliveryAddress = *o.DeliveryAddress
	}
	if o.OrderDate != nil {
		p.OrderDate = o.OrderDate
	}
	if o.OrderNotes != nil {
		p.OrderNotes = *o.OrderNotes
	}
	return p
}

func (s *Service) copyProducts(ctx context.Context, r *run) (domain.StepState, *uuid.UUID, error) {
	existing, err := s.repo.ListDealProducts(ctx, r.deal.ID)
	if err != nil {
		return "", nil, err
	}
	if len(existing) > 0 {
		return domain.StepSkipped, nil, nil
	}

	lines, err := s.repo.ListLeadProducts(ctx, r.lead.ID)
	if err != nil {
		return "", nil, err
	}
	copied := domain.CopyForDeal(lines)
	totals := domain.ComputeTotals(copied)
	if err := s.repo.ReplaceDealProducts(ctx, r.deal.ID, copied, totals); err != nil {
		return "", nil, err
	}
	r.deal.Total, r.deal.NetTotal = totals.Total, totals.NetTotal
	return domain.StepCompleted, nil, nil
}

func (s *Service) acceptLead(ctx context.Context, r *run) (domain.StepState, *uuid.UUID, error) {
	converted := true
	// The preparation notice replaces the status message.
	req := management.StatusUpdate{
		LeadID:           r.lead.ID,
		Status:           s.statuses.Accepted,
		ChangedBy:        r.in.ChangedBy,
		Converted:        &converted,
		SkipNotification: s.notifier != nil,
	}
	if strings.TrimSpace(r.lead.SLA) != "" {
		replied := domain.CommunicationReplied
		req.CommunicationStatus = &replied
	}

	lead, err := s.status.UpdateStatus(ctx, req)
	if err != nil {
		return "", nil, err
	}
	r.lead = lead
	return domain.StepCompleted, nil, nil
}

func (s *Service) notifyPreparation(ctx context.Context, r *run) (domain.StepState, *uuid.UUID, error) {
	if s.notifier == nil {
		return domain.StepSkipped, nil, nil
	}
	lines, err := s.repo.ListDealProducts(ctx, r.deal.ID)
	if err != nil {
		return "", nil, err
	}
	if err := s.notifier.NotifyPreparation(ctx, r.lead, *r.deal, lines); err != nil {
		return "", nil, err
	}
	return domain.StepCompleted, nil, nil
}
