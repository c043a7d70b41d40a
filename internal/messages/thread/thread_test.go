package thread

import (
	"context"
	"testing"
	"time"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/internal/messages/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	messages  []domain.Message
	templates map[string]domain.Template
	lookups   int
}

func (r *fakeRepo) ListByCounterparts(_ context.Context, digits []string) ([]domain.Message, error) {
	want := map[string]bool{}
	for _, d := range digits {
		want[d] = true
	}
	var out []domain.Message
	for _, m := range r.messages {
		if want[m.CounterpartDigits()] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByExternalID(_ context.Context, externalID string) (domain.Message, error) {
	r.lookups++
	for _, m := range r.messages {
		if m.ExternalID == externalID {
			return m, nil
		}
	}
	return domain.Message{}, repository.ErrNotFound
}

func (r *fakeRepo) GetTemplates(_ context.Context, names []string) (map[string]domain.Template, error) {
	out := map[string]domain.Template{}
	for _, n := range names {
		if t, ok := r.templates[n]; ok {
			out[n] = t
		}
	}
	return out, nil
}

type fakeDirectory struct {
	leads    map[uuid.UUID]LeadView
	deals    map[uuid.UUID]DealView
	contacts map[uuid.UUID]ContactView
}

func newDirectory() *fakeDirectory {
	return &fakeDirectory{
		leads:    map[uuid.UUID]LeadView{},
		deals:    map[uuid.UUID]DealView{},
		contacts: map[uuid.UUID]ContactView{},
	}
}

func (d *fakeDirectory) Lead(_ context.Context, id uuid.UUID) (LeadView, error) {
	if l, ok := d.leads[id]; ok {
		return l, nil
	}
	return LeadView{}, ErrEntityNotFound
}

func (d *fakeDirectory) Deal(_ context.Context, id uuid.UUID) (DealView, error) {
	if v, ok := d.deals[id]; ok {
		return v, nil
	}
	return DealView{}, ErrEntityNotFound
}

func (d *fakeDirectory) Contact(_ context.Context, id uuid.UUID) (ContactView, error) {
	if c, ok := d.contacts[id]; ok {
		return c, nil
	}
	return ContactView{}, ErrEntityNotFound
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(ext string, dir domain.Direction, counterpart string, body string, offset int) domain.Message {
	m := domain.Message{
		ID:          uuid.New(),
		ExternalID:  ext,
		Type:        dir,
		ContentType: domain.ContentText,
		MessageType: domain.MessageTypeManual,
		CreatedAt:   t0.Add(time.Duration(offset) * time.Minute),
	}
	if dir == domain.Incoming {
		m.From = counterpart
	} else {
		m.To = counterpart
	}
	if body != "" {
		m.Body = &body
	}
	return m
}

func leadFixture() (*fakeRepo, *fakeDirectory, uuid.UUID) {
	dir := newDirectory()
	leadID := uuid.New()
	dir.leads[leadID] = LeadView{ID: leadID, FirstName: "Mario", LastName: "Rossi", MobileNo: "+39 333 123 4567"}
	return &fakeRepo{templates: map[string]domain.Template{}}, dir, leadID
}

func TestPhoneNumbersForDealUnionsLeadAndContacts(t *testing.T) {
	dir := newDirectory()
	leadID, dealID, c1, c2 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	dir.leads[leadID] = LeadView{ID: leadID, MobileNo: "393331234567", Phone: "02 1234"}
	dir.contacts[c1] = ContactView{ID: c1, MobileNo: "+39 333 123 4567", Phones: []string{"3401112222"}}
	dir.contacts[c2] = ContactView{ID: c2, Phone: "0612345"}
	dir.deals[dealID] = DealView{ID: dealID, MobileNo: "", LeadID: &leadID, ContactIDs: []uuid.UUID{c1, c2}}

	r := New(&fakeRepo{}, dir, true, logger.Nop())
	phones, err := r.PhoneNumbersFor(context.Background(), domain.EntityRef{Type: domain.RefDeal, ID: dealID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]bool{"393331234567": true, "021234": true, "3401112222": true, "0612345": true}
	if len(phones) != len(want) {
		t.Fatalf("expected %d distinct phones, got %v", len(want), phones)
	}
	for _, p := range phones {
		if !want[p] {
			t.Fatalf("unexpected phone %q in %v", p, phones)
		}
	}
}

func TestPhoneNumbersForUnknownLead(t *testing.T) {
	r := New(&fakeRepo{}, newDirectory(), true, logger.Nop())
	_, err := r.PhoneNumbersFor(context.Background(), domain.EntityRef{Type: domain.RefLead, ID: uuid.New()})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestThreadMatchesByPhoneNotReference(t *testing.T) {
	repo, dir, leadID := leadFixture()
	repo.messages = []domain.Message{
		msg("m1", domain.Incoming, "393331234567", "ciao", 0),
		msg("m2", domain.Outgoing, "+39 333 123 4567", "hello", 1),
		msg("x1", domain.Incoming, "3470000000", "other customer", 2),
	}

	thread, err := New(repo, dir, true, logger.Nop()).Thread(context.Background(), domain.EntityRef{Type: domain.RefLead, ID: leadID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(thread) != 2 || thread[0].ExternalID != "m1" || thread[1].ExternalID != "m2" {
		t.Fatalf("unexpected thread %+v", thread)
	}
	if thread[1].FromName != "You" {
		t.Fatalf("expected outgoing sender shown as You, got %q", thread[1].FromName)
	}
	if thread[0].FromName != "393331234567" {
		t.Fatalf("expected unattributed sender shown by address, got %q", thread[0].FromName)
	}
}

func TestThreadHydratesTemplates(t *testing.T) {
	repo, dir, leadID := leadFixture()
	repo.templates["code"] = domain.Template{Name: "code", Header: "Order {{1}}", Body: "Hello {{1}}, your code is {{2}}", Footer: "Shop"}
	m := msg("m1", domain.Outgoing, "393331234567", "", 0)
	m.MessageType, m.TemplateName = domain.MessageTypeTemplate, "code"
	m.TemplateParams, m.HeaderParams = []string{"Mario", "4821"}, []string{"25-00021"}
	repo.messages = []domain.Message{m}

	thread, err := New(repo, dir, true, logger.Nop()).Thread(context.Background(), domain.EntityRef{Type: domain.RefLead, ID: leadID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := thread[0]
	if got.Template != "Hello Mario, your code is 4821" || got.Header != "Order 25-00021" || got.Footer != "Shop" {
		t.Fatalf("unexpected template hydration %+v", got)
	}
	if got.Message != "" {
		t.Fatalf("expected empty message text, got %q", got.Message)
	}
}

func TestThreadFoldsReactionsIntoTargets(t *testing.T) {
	repo, dir, leadID := leadFixture()
	target := msg("m1", domain.Outgoing, "393331234567", "your order is ready", 0)
	reaction := msg("m2", domain.Incoming, "393331234567", "👍", 1)
	reaction.ContentType, reaction.IsReply, reaction.ReplyToExternalID = domain.ContentReaction, true, "m1"
	repo.messages = []domain.Message{target, reaction}

	thread, err := New(repo, dir, true, logger.Nop()).Thread(context.Background(), domain.EntityRef{Type: domain.RefLead, ID: leadID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(thread) != 1 || thread[0].Reaction != "👍" {
		t.Fatalf("expected reaction attached and removed, got %+v", thread)
	}
}

func TestThreadResolvesRepliesInMemory(t *testing.T) {
	repo, dir, leadID := leadFixture()
	a := msg("m1", domain.Incoming, "393331234567", "is it in stock?", 0)
	b := msg("m2", domain.Outgoing, "393331234567", "yes", 1)
	b.IsReply, b.ReplyToExternalID = true, "m1"
	repo.messages = []domain.Message{a, b}

	thread, err := New(repo, dir, true, logger.Nop()).Thread(context.Background(), domain.EntityRef{Type: domain.RefLead, ID: leadID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := thread[1]
	if reply.ReplyMessage != "is it in stock?" || reply.ReplyTo == nil || *reply.ReplyTo != a.ID || reply.ReplyToType != "Incoming" {
		t.Fatalf("unexpected reply hydration %+v", reply)
	}
	if repo.lookups != 0 {
		t.Fatalf("expected no storage lookup for an in-thread target")
	}
}

func TestThreadReplyFallbackPolicy(t *testing.T) {
	repo, dir, leadID := leadFixture()
	old := msg("m0", domain.Incoming, "3470000000", "from another number", 0)
	reply := msg("m1", domain.Outgoing, "393331234567", "answering", 1)
	reply.IsReply, reply.ReplyToExternalID = true, "m0"
	repo.messages = []domain.Message{old, reply}
	ref := domain.EntityRef{Type: domain.RefLead, ID: leadID}

	thread, err := New(repo, dir, true, logger.Nop()).Thread(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(thread) != 1 || thread[0].ReplyMessage != "from another number" {
		t.Fatalf("expected storage fallback to resolve the reply, got %+v", thread)
	}

	thread, err = New(repo, dir, false, logger.Nop()).Thread(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thread[0].ReplyMessage != "" {
		t.Fatalf("expected unresolved reply without fallback, got %q", thread[0].ReplyMessage)
	}
}

func TestThreadMissingReplyTargetIsNotFatal(t *testing.T) {
	repo, dir, leadID := leadFixture()
	reply := msg("m1", domain.Incoming, "393331234567", "?", 0)
	reply.IsReply, reply.ReplyToExternalID = true, "gone"
	repo.messages = []domain.Message{reply}

	thread, err := New(repo, dir, true, logger.Nop()).Thread(context.Background(), domain.EntityRef{Type: domain.RefLead, ID: leadID})
	if err != nil {
		t.Fatalf("expected graceful degradation, got %v", err)
	}
	if len(thread) != 1 || thread[0].ReplyMessage != "" {
		t.Fatalf("unexpected thread %+v", thread)
	}
}

func TestDisplayNameFromDealPrimaryContact(t *testing.T) {
	repo, dir, _ := leadFixture()
	dealID, contactID := uuid.New(), uuid.New()
	dir.contacts[contactID] = ContactView{ID: contactID, FullName: "Giulia Bianchi", MobileNo: "393331234567"}
	dir.deals[dealID] = DealView{ID: dealID, MobileNo: "393331234567", LeadName: "Mario Rossi", PrimaryContactID: &contactID, ContactIDs: []uuid.UUID{contactID}}
	in := msg("m1", domain.Incoming, "393331234567", "hi", 0)
	in.ReferenceType, in.ReferenceID, in.ProfileName = domain.RefDeal, &dealID, "gb"
	repo.messages = []domain.Message{in}

	thread, err := New(repo, dir, true, logger.Nop()).Thread(context.Background(), domain.EntityRef{Type: domain.RefDeal, ID: dealID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thread[0].FromName != "Giulia Bianchi" {
		t.Fatalf("expected primary contact name, got %q", thread[0].FromName)
	}
}

func TestDisplayNameFallsBackToProfileName(t *testing.T) {
	repo, dir, leadID := leadFixture()
	in := msg("m1", domain.Incoming, "393331234567", "hi", 0)
	in.ProfileName = "Mario R."
	repo.messages = []domain.Message{in}

	thread, _ := New(repo, dir, true, logger.Nop()).Thread(context.Background(), domain.EntityRef{Type: domain.RefLead, ID: leadID})
	if thread[0].FromName != "Mario R." {
		t.Fatalf("expected profile name, got %q", thread[0].FromName)
	}
}
