package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/leadstest"
	"crm_workflow_backend/internal/leads/management"
	"crm_workflow_backend/internal/leads/ports"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
)

type fakeIdentity struct {
	contacts []ports.Contact
	created  int
	orgs     map[string]uuid.UUID
}

func (f *fakeIdentity) EnsureOrganization(_ context.Context, in ports.OrganizationInput) (ports.Organization, error) {
	if f.orgs == nil {
		f.orgs = map[string]uuid.UUID{}
	}
	id, ok := f.orgs[in.Name]
	if !ok {
		id = uuid.New()
		f.orgs[in.Name] = id
	}
	return ports.Organization{ID: id, Name: in.Name}, nil
}

func (f *fakeIdentity) LinkContactToOrganization(context.Context, string, string, uuid.UUID) error {
	return nil
}

func (f *fakeIdentity) FindContact(_ context.Context, email string, phones ...string) (*ports.Contact, error) {
	for _, c := range f.contacts {
		for _, p := range phones {
			if phone.Same(p, c.MobileNo) || phone.Same(p, c.Phone) {
				found := c
				return &found, nil
			}
		}
		if email != "" && c.Email == email {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeIdentity) CreateContact(_ context.Context, in ports.NewContact) (ports.Contact, error) {
	f.created++
	c := ports.Contact{ID: uuid.New(), FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, MobileNo: in.MobileNo, Phone: in.Phone}
	f.contacts = append(f.contacts, c)
	return c, nil
}

func (f *fakeIdentity) GetContact(_ context.Context, id uuid.UUID) (ports.Contact, error) {
	for _, c := range f.contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return ports.Contact{}, apperr.NotFound("contact not found")
}

type fakeNotifier struct {
	err   error
	calls int
	lines int
}

func (f *fakeNotifier) NotifyPreparation(_ context.Context, _ domain.Lead, _ domain.Deal, lines []domain.ProductLine) error {
	f.calls++
	f.lines = len(lines)
	return f.err
}

type fixture struct {
	svc      *Service
	repo     *leadstest.Repository
	identity *fakeIdentity
	notifier *fakeNotifier
}

func newFixture() fixture {
	repo := leadstest.New()
	bus := events.NewInMemoryBus(logger.Nop())
	mgmt := management.New(repo, bus, nil, logger.Nop())
	identity := &fakeIdentity{}
	notifier := &fakeNotifier{}
	svc := New(repo, mgmt, identity, notifier, bus, Statuses{Accepted: "Confirmed", DealInitial: "New"}, logger.Nop())
	return fixture{svc: svc, repo: repo, identity: identity, notifier: notifier}
}

func (f fixture) seedLead(t *testing.T) domain.Lead {
	t.Helper()
	delivery := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	responded := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	lead := f.repo.AddLead(domain.Lead{
		FirstName:         "Anna",
		LastName:          "Rossi",
		Email:             "anna@example.com",
		MobileNo:          "+39 333 123 4567",
		Organization:      "Pasticceria Rossi",
		Status:            "Awaiting Payment",
		LeadOwner:         "marco",
		SLA:               "Standard",
		FirstResponseTime: 120,
		FirstRespondedOn:  &responded,
		DeliveryDate:      &delivery,
		DeliveryAddress:   "Via Roma 1",
		OrderDetails:      json.RawMessage(`{"notes":"senza glutine"}`),
	})
	lines := domain.ComputeLines([]domain.ProductLine{
		{ProductName: "Torta", Qty: 2, Rate: 18.5},
		{ProductName: "Biscotti", Qty: 1, Rate: 10},
	})
	lines[1].NetAmount = 0
	if err := f.repo.ReplaceLeadProducts(context.Background(), lead.ID, lines, domain.ComputeTotals(lines)); err != nil {
		t.Fatalf("seed lines: %v", err)
	}
	return lead
}

func TestConvertToDealCopiesLeadAndAcceptsIt(t *testing.T) {
	f := newFixture()
	lead := f.seedLead(t)

	result, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{ChangedBy: "sales"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DealID == nil || result.ContactID == nil || result.OrganizationID == nil {
		t.Fatalf("expected deal, contact and organization in result, got %+v", result)
	}
	for _, step := range domain.ConversionSteps {
		if result.Steps[step] != domain.StepCompleted {
			t.Fatalf("expected step %s completed, got %q", step, result.Steps[step])
		}
	}

	deal := f.repo.Deals[*result.DealID]
	if deal.Status != "New" || deal.DealOwner != "marco" {
		t.Fatalf("unexpected deal status/owner %q/%q", deal.Status, deal.DealOwner)
	}
	if deal.OrderNotes != "senza glutine" || deal.ExpectedClosureDate == nil || !deal.ExpectedClosureDate.Equal(*lead.DeliveryDate) {
		t.Fatalf("expected notes and closure date copied, got %+v", deal)
	}
	if deal.SLA != "Standard" || deal.FirstResponseTime != 120 {
		t.Fatalf("expected SLA copied once first response exists")
	}
	if deal.MobileNo != "+39 333 123 4567" {
		t.Fatalf("expected deal mobile from contact, got %q", deal.MobileNo)
	}

	dealLines := f.repo.DealLines[deal.ID]
	leadLines := f.repo.LeadLines[lead.ID]
	if len(dealLines) != 2 || dealLines[0].ID == leadLines[0].ID {
		t.Fatalf("expected lines copied into new rows")
	}
	if dealLines[1].NetAmount != 10 || deal.NetTotal != 47 || deal.Total != 47 {
		t.Fatalf("expected net defaulted and totals recomputed, got line %+v deal totals %v/%v", dealLines[1], deal.Total, deal.NetTotal)
	}

	accepted := f.repo.Leads[lead.ID]
	if accepted.Status != "Confirmed" || !accepted.Converted || accepted.CommunicationStatus != domain.CommunicationReplied {
		t.Fatalf("unexpected lead after conversion %+v", accepted)
	}
	if len(f.repo.LogFor(lead.ID)) != 1 {
		t.Fatalf("expected status change logged")
	}
	if f.notifier.calls != 1 || f.notifier.lines != 2 {
		t.Fatalf("expected preparation notice with lines, got %d calls", f.notifier.calls)
	}
	if contacts := f.repo.DealContacts[deal.ID]; len(contacts) != 1 || contacts[0] != *result.ContactID {
		t.Fatalf("expected contact linked to deal, got %v", contacts)
	}
}

func TestConvertToDealSendsOnlyPreparationNotice(t *testing.T) {
	repo := leadstest.New()
	bus := events.NewInMemoryBus(logger.Nop())
	var changes []events.LeadStatusChanged
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		changes = append(changes, e.(events.LeadStatusChanged))
		return nil
	}))
	mgmt := management.New(repo, bus, nil, logger.Nop())
	notifier := &fakeNotifier{}
	svc := New(repo, mgmt, &fakeIdentity{}, notifier, bus, Statuses{Accepted: "Confirmed", DealInitial: "New"}, logger.Nop())
	f := fixture{svc: svc, repo: repo}
	lead := f.seedLead(t)

	if _, err := svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{ChangedBy: "sales"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 1 || changes[0].NewStatus != "Confirmed" || !changes[0].Silent {
		t.Fatalf("expected one silent status change, got %+v", changes)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected preparation notice sent once, got %d", notifier.calls)
	}
}

func TestConvertToDealAnnouncesStatusWithoutNotifier(t *testing.T) {
	repo := leadstest.New()
	bus := events.NewInMemoryBus(logger.Nop())
	var changes []events.LeadStatusChanged
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		changes = append(changes, e.(events.LeadStatusChanged))
		return nil
	}))
	mgmt := management.New(repo, bus, nil, logger.Nop())
	svc := New(repo, mgmt, &fakeIdentity{}, nil, bus, Statuses{Accepted: "Confirmed", DealInitial: "New"}, logger.Nop())
	f := fixture{svc: svc, repo: repo}
	lead := f.seedLead(t)

	if _, err := svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{ChangedBy: "sales"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 1 || changes[0].Silent {
		t.Fatalf("expected the status change announced, got %+v", changes)
	}
}

func TestConvertToDealIsIdempotent(t *testing.T) {
	f := newFixture()
	lead := f.seedLead(t)

	first, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{})
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if *first.DealID != *second.DealID || len(f.repo.Deals) != 1 {
		t.Fatalf("expected retry to reuse the deal, have %d deals", len(f.repo.Deals))
	}
	if f.identity.created != 1 {
		t.Fatalf("expected one contact created, got %d", f.identity.created)
	}
	if f.notifier.calls != 1 {
		t.Fatalf("expected no second preparation notice, got %d", f.notifier.calls)
	}
}

func TestConvertToDealFailsOnConflictingContact(t *testing.T) {
	f := newFixture()
	lead := f.seedLead(t)
	existing, _ := f.identity.CreateContact(context.Background(), ports.NewContact{FirstName: "Anna", MobileNo: "393331234567"})

	_, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.repo.Deals) != 0 {
		t.Fatalf("expected no deal on conflict")
	}

	result, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{ContactID: &existing.ID})
	if err != nil {
		t.Fatalf("expected override to resolve conflict, got %v", err)
	}
	if *result.ContactID != existing.ID {
		t.Fatalf("expected override contact used")
	}
}

func TestConvertToDealResumesAfterFailure(t *testing.T) {
	f := newFixture()
	lead := f.seedLead(t)
	f.repo.FailCreateDeal = errors.New("connection reset")

	_, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	partial, ok := appErr.Details.(ConversionResult)
	if !ok || partial.ContactID == nil || partial.Steps[domain.StepDeal] != domain.StepFailed {
		t.Fatalf("expected partial result in details, got %+v", appErr.Details)
	}
	if f.repo.Leads[lead.ID].Status != "Awaiting Payment" {
		t.Fatalf("expected lead status untouched by failed conversion")
	}

	f.repo.FailCreateDeal = nil
	result, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{})
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if f.identity.created != 1 || *result.ContactID != *partial.ContactID {
		t.Fatalf("expected contact from first attempt reused")
	}
	if rec := f.repo.Steps[lead.ID][domain.StepDeal]; rec.Attempts != 2 || rec.State != domain.StepCompleted {
		t.Fatalf("expected deal step completed on second attempt, got %+v", rec)
	}
}

func TestConvertToDealNotificationFailureIsRecordedNotReturned(t *testing.T) {
	f := newFixture()
	lead := f.seedLead(t)
	f.notifier.err = errors.New("gateway down")

	result, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{})
	if err != nil {
		t.Fatalf("expected notification failure swallowed, got %v", err)
	}
	if result.Steps[domain.StepNotify] != domain.StepFailed {
		t.Fatalf("expected notify step failed, got %q", result.Steps[domain.StepNotify])
	}
	if f.repo.Leads[lead.ID].Status != "Confirmed" {
		t.Fatalf("expected conversion kept")
	}
}

func TestConvertToDealSkipsSLAWithoutFirstResponse(t *testing.T) {
	f := newFixture()
	lead := f.repo.AddLead(domain.Lead{FirstName: "Luca", LastName: "Bianchi", Status: "New", SLA: "Standard", SLAStatus: "Fulfilled"})

	result, err := f.svc.ConvertToDeal(context.Background(), lead.ID, ConvertInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deal := f.repo.Deals[*result.DealID]
	if deal.SLA != "" || deal.SLAStatus != "" {
		t.Fatalf("expected SLA not copied, got %q/%q", deal.SLA, deal.SLAStatus)
	}
	if result.Steps[domain.StepOrganization] != domain.StepSkipped {
		t.Fatalf("expected organization step skipped without organization")
	}
}
