// Package leadstest provides an in-memory leads repository for tests of the
// packages built on it.
package leadstest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/repository"
	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
)

// Repository implements repository.LeadsRepository in memory. Fail* fields
// inject errors into the named operation.
type Repository struct {
	mu sync.Mutex

	Leads        map[uuid.UUID]domain.Lead
	LeadLines    map[uuid.UUID][]domain.ProductLine
	Log          []domain.StatusLogEntry
	Deals        map[uuid.UUID]domain.Deal
	DealLines    map[uuid.UUID][]domain.ProductLine
	DealContacts map[uuid.UUID][]uuid.UUID
	Steps        map[uuid.UUID]map[domain.ConversionStep]domain.StepRecord
	StatusList   []domain.Status

	FailCreateDeal   error
	FailUpdateStatus map[uuid.UUID]error
	Now              func() time.Time

	leadSeq int
	dealSeq int
}

// New returns a repository seeded with the default vocabularies.
func New() *Repository {
	r := &Repository{
		Leads:            map[uuid.UUID]domain.Lead{},
		LeadLines:        map[uuid.UUID][]domain.ProductLine{},
		Deals:            map[uuid.UUID]domain.Deal{},
		DealLines:        map[uuid.UUID][]domain.ProductLine{},
		DealContacts:     map[uuid.UUID][]uuid.UUID{},
		Steps:            map[uuid.UUID]map[domain.ConversionStep]domain.StepRecord{},
		FailUpdateStatus: map[uuid.UUID]error{},
		Now:              time.Now,
	}
	for i, name := range []string{"New", "Contacted", "Negotiation", "Rescheduled", "Awaiting Payment", "Confirmed", "Not Paid", "Rejected"} {
		r.StatusList = append(r.StatusList, domain.Status{ID: uuid.New(), Entity: domain.EntityLead, Name: name, Position: i + 1})
	}
	for i, name := range []string{"New", "Negotiation", "Rescheduled", "Preparation", "Completed", "Lost"} {
		r.StatusList = append(r.StatusList, domain.Status{ID: uuid.New(), Entity: domain.EntityDeal, Name: name, Position: i + 1})
	}
	return r
}

// AddLead stores a lead as is, assigning an id and name when missing.
func (r *Repository) AddLead(lead domain.Lead) domain.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLeadLocked(lead)
}

func (r *Repository) addLeadLocked(lead domain.Lead) domain.Lead {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Name == "" {
		r.leadSeq++
		lead.Name = fmt.Sprintf("CRM-LEAD-%d-%05d", r.Now().Year(), r.leadSeq)
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = r.Now()
	}
	r.Leads[lead.ID] = lead
	return lead
}

// AddLogEntry appends a log entry as is.
func (r *Repository) AddLogEntry(entry domain.StatusLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.Log = append(r.Log, entry)
}

// LogFor returns the log entries of a lead in insertion order.
func (r *Repository) LogFor(leadID uuid.UUID) []domain.StatusLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StatusLogEntry
	for _, e := range r.Log {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out
}

func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.Leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (r *Repository) GetByName(_ context.Context, name string) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.Leads {
		if lead.Name == name {
			return lead, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (r *Repository) sortedLeads() []domain.Lead {
	out := make([]domain.Lead, 0, len(r.Leads))
	for _, lead := range r.Leads {
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Repository) FindByIdentity(_ context.Context, key repository.IdentityKey) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.sortedLeads() {
		if lead.FirstName != key.FirstName || lead.LastName != key.LastName || lead.Organization != key.Organization {
			continue
		}
		if strings.TrimSpace(key.Email) != "" {
			if strings.EqualFold(lead.Email, key.Email) {
				return lead, nil
			}
			continue
		}
		if key.MobileDigits != "" {
			if phone.Digits(lead.MobileNo) == key.MobileDigits {
				return lead, nil
			}
			continue
		}
		if lead.Email == "" && lead.MobileNo == "" {
			return lead, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (r *Repository) FindLatestByMobile(_ context.Context, digits string) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	leads := r.sortedLeads()
	for i := len(leads) - 1; i >= 0; i-- {
		if phone.Digits(leads[i].MobileNo) == digits {
			return leads[i], nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (r *Repository) ListByStatus(_ context.Context, status string) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Lead
	for _, lead := range r.sortedLeads() {
		if lead.Status == status {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (r *Repository) Create(_ context.Context, p repository.CreateLeadParams) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLeadLocked(domain.Lead{
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Email:           p.Email,
		MobileNo:        p.MobileNo,
		Phone:           p.Phone,
		Organization:    p.Organization,
		Website:         p.Website,
		Source:          p.Source,
		Status:          p.Status,
		LeadOwner:       p.LeadOwner,
		DeliveryDate:    p.DeliveryDate,
		DeliveryAddress: p.DeliveryAddress,
		OrderDate:       p.OrderDate,
		OrderDetails:    p.OrderDetails,
	}), nil
}

func (r *Repository) UpdateStatus(_ context.Context, p repository.UpdateStatusParams) (repository.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailUpdateStatus[p.LeadID]; err != nil {
		return repository.StatusChange{}, err
	}
	before, ok := r.Leads[p.LeadID]
	if !ok {
		return repository.StatusChange{}, repository.ErrNotFound
	}
	if p.ExpectedStatus != "" && before.Status != p.ExpectedStatus {
		return repository.StatusChange{}, repository.ErrStatusChanged
	}
	after := before
	after.Status = p.Status
	if p.Converted != nil {
		after.Converted = *p.Converted
	}
	if p.CommunicationStatus != nil {
		after.CommunicationStatus = *p.CommunicationStatus
	}
	r.Leads[p.LeadID] = after

	change := repository.StatusChange{Before: before, After: after}
	if before.Status != p.Status {
		entry := domain.StatusLogEntry{
			ID:         uuid.New(),
			LeadID:     p.LeadID,
			FromStatus: before.Status,
			ToStatus:   p.Status,
			ChangedBy:  p.ChangedBy,
			ChangedAt:  r.Now(),
		}
		r.Log = append(r.Log, entry)
		change.Entry = &entry
	}
	return change, nil
}

func (r *Repository) LatestTransitionInto(_ context.Context, leadID uuid.UUID, status string) (domain.StatusLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.StatusLogEntry
	for i := range r.Log {
		e := r.Log[i]
		if e.LeadID != leadID || e.ToStatus != status {
			continue
		}
		if latest == nil || e.ChangedAt.After(latest.ChangedAt) {
			latest = &e
		}
	}
	if latest == nil {
		return domain.StatusLogEntry{}, repository.ErrNotFound
	}
	return *latest, nil
}

func (r *Repository) ListStatusLog(_ context.Context, leadID uuid.UUID) ([]domain.StatusLogEntry, error) {
	return r.LogFor(leadID), nil
}

func (r *Repository) ListLeadProducts(_ context.Context, leadID uuid.UUID) ([]domain.ProductLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ProductLine(nil), r.LeadLines[leadID]...), nil
}

func (r *Repository) ReplaceLeadProducts(_ context.Context, leadID uuid.UUID, lines []domain.ProductLine, totals domain.Totals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.Leads[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	lead.Total, lead.NetTotal = totals.Total, totals.NetTotal
	r.Leads[leadID] = lead
	r.LeadLines[leadID] = withIDs(lines)
	return nil
}

func (r *Repository) ListDealProducts(_ context.Context, dealID uuid.UUID) ([]domain.ProductLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ProductLine(nil), r.DealLines[dealID]...), nil
}

func (r *Repository) ReplaceDealProducts(_ context.Context, dealID uuid.UUID, lines []domain.ProductLine, totals domain.Totals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	deal, ok := r.Deals[dealID]
	if !ok {
		return repository.ErrDealNotFound
	}
	deal.Total, deal.NetTotal = totals.Total, totals.NetTotal
	r.Deals[dealID] = deal
	r.DealLines[dealID] = withIDs(lines)
	return nil
}

func withIDs(lines []domain.ProductLine) []domain.ProductLine {
	out := make([]domain.ProductLine, len(lines))
	for i, line := range lines {
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		out[i] = line
	}
	return out
}

func (r *Repository) GetDeal(_ context.Context, id uuid.UUID) (domain.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deal, ok := r.Deals[id]
	if !ok {
		return domain.Deal{}, repository.ErrDealNotFound
	}
	return deal, nil
}

func (r *Repository) CreateDeal(_ context.Context, p repository.CreateDealParams) (domain.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreateDeal != nil {
		return domain.Deal{}, r.FailCreateDeal
	}
	r.dealSeq++
	leadID := p.LeadID
	deal := domain.Deal{
		ID:                  uuid.New(),
		Name:                fmt.Sprintf("CRM-DEAL-%d-%05d", r.Now().Year(), r.dealSeq),
		LeadID:              &leadID,
		OrganizationID:      p.OrganizationID,
		Status:              p.Status,
		DealOwner:           p.DealOwner,
		MobileNo:            p.MobileNo,
		Website:             p.Website,
		Territory:           p.Territory,
		Industry:            p.Industry,
		AnnualRevenue:       p.AnnualRevenue,
		Source:              p.Source,
		SLA:                 p.SLA,
		SLAStatus:           p.SLAStatus,
		SLACreation:         p.SLACreation,
		ResponseBy:          p.ResponseBy,
		FirstResponseTime:   p.FirstResponseTime,
		FirstRespondedOn:    p.FirstRespondedOn,
		CommunicationStatus: p.CommunicationStatus,
		ExpectedClosureDate: p.ExpectedClosureDate,
		DeliveryDate:        p.DeliveryDate,
		DeliveryAddress:     p.DeliveryAddress,
		OrderDate:           p.OrderDate,
		OrderNotes:          p.OrderNotes,
		CreatedAt:           r.Now(),
	}
	r.Deals[deal.ID] = deal
	return deal, nil
}

func (r *Repository) AddDealContact(_ context.Context, dealID, contactID uuid.UUID, primary bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.DealContacts[dealID]
	for _, id := range ids {
		if id == contactID {
			return nil
		}
	}
	if primary {
		r.DealContacts[dealID] = append([]uuid.UUID{contactID}, ids...)
	} else {
		r.DealContacts[dealID] = append(ids, contactID)
	}
	return nil
}

func (r *Repository) DealContactIDs(_ context.Context, dealID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.DealContacts[dealID]...), nil
}

func (r *Repository) FindLatestDealByMobile(_ context.Context, digits string) (domain.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.Deal
	for _, d := range r.Deals {
		if phone.Digits(d.MobileNo) != digits {
			continue
		}
		if found == nil || d.CreatedAt.After(found.CreatedAt) {
			deal := d
			found = &deal
		}
	}
	if found == nil {
		return domain.Deal{}, repository.ErrDealNotFound
	}
	return *found, nil
}

func (r *Repository) ListConversionSteps(_ context.Context, leadID uuid.UUID) (map[domain.ConversionStep]domain.StepRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[domain.ConversionStep]domain.StepRecord{}
	for k, v := range r.Steps[leadID] {
		out[k] = v
	}
	return out, nil
}

func (r *Repository) RecordConversionStep(_ context.Context, leadID uuid.UUID, rec domain.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := r.Steps[leadID]
	if steps == nil {
		steps = map[domain.ConversionStep]domain.StepRecord{}
		r.Steps[leadID] = steps
	}
	prev, ok := steps[rec.Step]
	rec.Attempts = 1
	if ok {
		rec.Attempts = prev.Attempts + 1
		if rec.RefID == nil {
			rec.RefID = prev.RefID
		}
	}
	rec.UpdatedAt = r.Now()
	steps[rec.Step] = rec
	return nil
}

func (r *Repository) ListStatuses(_ context.Context, entity domain.EntityKind) ([]domain.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Status
	for _, s := range r.StatusList {
		if s.Entity == entity {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Repository) CreateStatus(_ context.Context, entity domain.EntityKind, name string, position int, color string) (domain.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.StatusList {
		if s.Entity == entity && s.Name == name {
			return domain.Status{}, repository.ErrStatusExists
		}
	}
	s := domain.Status{ID: uuid.New(), Entity: entity, Name: name, Position: position, Color: color}
	r.StatusList = append(r.StatusList, s)
	return s, nil
}

var _ repository.LeadsRepository = (*Repository)(nil)
