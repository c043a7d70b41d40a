package intake

import (
	"context"
	"testing"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/leadstest"
	"crm_workflow_backend/internal/leads/ports"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/validator"

	"github.com/google/uuid"
)

type fakeIdentity struct {
	orgs  map[string]ports.Organization
	links []string
}

func (f *fakeIdentity) EnsureOrganization(_ context.Context, in ports.OrganizationInput) (ports.Organization, error) {
	if f.orgs == nil {
		f.orgs = map[string]ports.Organization{}
	}
	if org, ok := f.orgs[in.Name]; ok {
		return org, nil
	}
	org := ports.Organization{ID: uuid.New(), Name: in.Name}
	f.orgs[in.Name] = org
	return org, nil
}

func (f *fakeIdentity) LinkContactToOrganization(_ context.Context, digits, email string, _ uuid.UUID) error {
	f.links = append(f.links, digits+"|"+email)
	return nil
}

func (f *fakeIdentity) FindContact(context.Context, string, ...string) (*ports.Contact, error) {
	return nil, nil
}

func (f *fakeIdentity) CreateContact(_ context.Context, in ports.NewContact) (ports.Contact, error) {
	return ports.Contact{ID: uuid.New(), FirstName: in.FirstName}, nil
}

func (f *fakeIdentity) GetContact(_ context.Context, id uuid.UUID) (ports.Contact, error) {
	return ports.Contact{ID: id}, nil
}

type fakeMessages struct {
	phone string
	calls int
}

func (f *fakeMessages) LatestIncomingPhone(context.Context, string, uuid.UUID) (string, error) {
	f.calls++
	return f.phone, nil
}

func newTestService() (*Service, *leadstest.Repository, *fakeIdentity, *fakeMessages) {
	repo := leadstest.New()
	identity := &fakeIdentity{}
	msgs := &fakeMessages{}
	bus := events.NewInMemoryBus(logger.Nop())
	return New(repo, identity, msgs, bus, validator.New(), "New", logger.Nop()), repo, identity, msgs
}

func TestFindOrCreateLeadIsIdempotentByEmail(t *testing.T) {
	svc, repo, _, _ := newTestService()
	in := LeadIntake{FirstName: "Anna", LastName: "Rossi", Organization: "Pasticceria Rossi", Email: "Anna@Example.com"}

	first, existed, err := svc.FindOrCreateLead(context.Background(), in)
	if err != nil || existed {
		t.Fatalf("expected new lead, got existed=%v err=%v", existed, err)
	}
	if first.Status != "New" || first.Email != "anna@example.com" {
		t.Fatalf("unexpected lead %+v", first)
	}

	second, existed, err := svc.FindOrCreateLead(context.Background(), in)
	if err != nil || !existed {
		t.Fatalf("expected existing lead, got existed=%v err=%v", existed, err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same lead, got %s and %s", first.ID, second.ID)
	}
	if len(repo.Leads) != 1 {
		t.Fatalf("expected one stored lead, got %d", len(repo.Leads))
	}
}

func TestFindOrCreateLeadMatchesOnMobileWithoutEmail(t *testing.T) {
	svc, repo, identity, _ := newTestService()
	in := LeadIntake{FirstName: "Anna", LastName: "Rossi", Organization: "Rossi", MobileNo: "+39 333 1234567"}

	first, _, err := svc.FindOrCreateLead(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.MobileNo != "+39 333 123 4567" {
		t.Fatalf("expected pretty mobile, got %q", first.MobileNo)
	}

	in.MobileNo = "393331234567"
	second, existed, err := svc.FindOrCreateLead(context.Background(), in)
	if err != nil || !existed || second.ID != first.ID {
		t.Fatalf("expected digit match on mobile, got existed=%v err=%v", existed, err)
	}
	if len(repo.Leads) != 1 {
		t.Fatalf("expected one stored lead")
	}
	if len(identity.links) != 2 || identity.links[0] != "393331234567|" {
		t.Fatalf("expected contact linked on every call, got %v", identity.links)
	}
}

func TestFindOrCreateLeadDifferentEmailCreatesSecondLead(t *testing.T) {
	svc, repo, _, _ := newTestService()
	base := LeadIntake{FirstName: "Anna", LastName: "Rossi", Organization: "Rossi"}

	a := base
	a.Email = "a@example.com"
	b := base
	b.Email = "b@example.com"
	if _, _, err := svc.FindOrCreateLead(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, existed, err := svc.FindOrCreateLead(context.Background(), b); err != nil || existed {
		t.Fatalf("expected a second lead, existed=%v err=%v", existed, err)
	}
	if len(repo.Leads) != 2 {
		t.Fatalf("expected two leads, got %d", len(repo.Leads))
	}
}

func TestFindOrCreateLeadValidation(t *testing.T) {
	svc, _, _, _ := newTestService()

	cases := []LeadIntake{
		{LastName: "Rossi", Organization: "Rossi"},
		{FirstName: "Anna", LastName: "Rossi"},
		{FirstName: "Anna", LastName: "Rossi", Organization: "Rossi", Email: "not-an-email"},
	}
	for _, in := range cases {
		_, _, err := svc.FindOrCreateLead(context.Background(), in)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
}

func TestFindOrCreateLeadInfersPhoneFromConversation(t *testing.T) {
	svc, _, _, msgs := newTestService()
	msgs.phone = "393479876543"
	ref := uuid.New()

	lead, _, err := svc.FindOrCreateLead(context.Background(), LeadIntake{
		FirstName: "Luca", LastName: "Bianchi", Organization: "Bianchi", ReferenceType: "lead", ReferenceID: &ref,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs.calls != 1 || lead.MobileNo != "+39 347 987 6543" {
		t.Fatalf("expected inferred mobile, got %q after %d lookups", lead.MobileNo, msgs.calls)
	}
}
