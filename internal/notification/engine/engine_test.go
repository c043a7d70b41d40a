package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	leadsdomain "crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/internal/notification/outbox"
	"crm_workflow_backend/internal/notification/repository"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeads struct {
	lead  leadsdomain.Lead
	lines []leadsdomain.ProductLine
}

func (f *fakeLeads) GetLead(_ context.Context, id uuid.UUID) (leadsdomain.Lead, error) {
	if id != f.lead.ID {
		return leadsdomain.Lead{}, errors.New("lead not found")
	}
	return f.lead, nil
}

func (f *fakeLeads) LeadProducts(context.Context, uuid.UUID) ([]leadsdomain.ProductLine, error) {
	return f.lines, nil
}

func (f *fakeLeads) StatusNames(context.Context, leadsdomain.EntityKind) ([]string, error) {
	return []string{"New", "Contacted", "Awaiting Payment", "Confirmed", "Not Paid", "Rejected"}, nil
}

type fakeContacts struct{ phones map[string]string }

func (f fakeContacts) PhoneByEmail(_ context.Context, email string) (string, error) {
	return f.phones[email], nil
}

type fakeMessages struct{ phone string }

func (f fakeMessages) LatestIncomingPhone(context.Context, string, uuid.UUID) (string, error) {
	return f.phone, nil
}

type sentNotification struct {
	to, body, label string
	ref             domain.EntityRef
}

type fakeSender struct {
	sent []sentNotification
	err  error
}

func (f *fakeSender) SendNotification(_ context.Context, to, body, label string, ref domain.EntityRef) (domain.Message, error) {
	if f.err != nil {
		return domain.Message{}, f.err
	}
	f.sent = append(f.sent, sentNotification{to: to, body: body, label: label, ref: ref})
	return domain.Message{ID: uuid.New()}, nil
}

type fakeSettings struct {
	settings     map[string]repository.Setting
	instructions string
}

func (f fakeSettings) GetSetting(_ context.Context, slug string) (repository.Setting, error) {
	s, ok := f.settings[slug]
	if !ok {
		return repository.Setting{}, repository.ErrNotFound
	}
	return s, nil
}

func (f fakeSettings) PaymentInstructions(context.Context) (string, error) {
	return f.instructions, nil
}

type fakeOutbox struct {
	byKey   map[string]uuid.UUID
	records map[uuid.UUID]*outbox.Record
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{byKey: map[string]uuid.UUID{}, records: map[uuid.UUID]*outbox.Record{}}
}

func (f *fakeOutbox) Insert(_ context.Context, p outbox.InsertParams) (outbox.Record, bool, error) {
	if id, ok := f.byKey[p.IdempotencyKey]; ok {
		return *f.records[id], false, nil
	}
	rec := &outbox.Record{
		ID:             uuid.New(),
		IdempotencyKey: p.IdempotencyKey,
		LeadID:         p.LeadID,
		Channel:        outbox.ChannelWhatsApp,
		Recipient:      p.Recipient,
		Body:           p.Body,
		Label:          p.Label,
		Status:         outbox.StatusPending,
		RunAt:          p.RunAt,
	}
	f.byKey[p.IdempotencyKey] = rec.ID
	f.records[rec.ID] = rec
	return *rec, true, nil
}

func (f *fakeOutbox) MarkProcessing(_ context.Context, id uuid.UUID) (outbox.Record, bool, error) {
	rec, ok := f.records[id]
	if !ok || (rec.Status != outbox.StatusPending && rec.Status != outbox.StatusEnqueued) {
		return outbox.Record{}, false, nil
	}
	rec.Status = outbox.StatusProcessing
	rec.Attempts++
	return *rec, true, nil
}

func (f *fakeOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	f.records[id].Status = outbox.StatusSucceeded
	return nil
}

func (f *fakeOutbox) MarkPending(_ context.Context, id uuid.UUID, lastError string, runAt time.Time) error {
	rec := f.records[id]
	rec.Status = outbox.StatusPending
	rec.LastError = lastError
	rec.RunAt = runAt
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	rec := f.records[id]
	rec.Status = outbox.StatusFailed
	rec.LastError = lastError
	return nil
}

func (f *fakeOutbox) only(t *testing.T) *outbox.Record {
	t.Helper()
	if len(f.records) != 1 {
		t.Fatalf("expected one outbox record, got %d", len(f.records))
	}
	for _, rec := range f.records {
		return rec
	}
	return nil
}

type fixture struct {
	engine *Engine
	leads  *fakeLeads
	sender *fakeSender
	outbox *fakeOutbox
	now    time.Time
}

func newFixture(lead leadsdomain.Lead, settings map[string]repository.Setting) *fixture {
	f := &fixture{
		leads:  &fakeLeads{lead: lead},
		sender: &fakeSender{},
		outbox: newFakeOutbox(),
		now:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.engine = New(Dependencies{
		Leads:    f.leads,
		Contacts: fakeContacts{phones: map[string]string{"anna@example.com": "+39 333 111 2222"}},
		Messages: fakeMessages{phone: "393330000000"},
		Sender:   f.sender,
		Settings: fakeSettings{settings: settings},
		Outbox:   f.outbox,
	}, config.MustDefaultWorkflow(), logger.Nop())
	f.engine.now = func() time.Time { return f.now }
	return f
}

func enabled(slug, name string) map[string]repository.Setting {
	return map[string]repository.Setting{slug: {Slug: slug, StatusName: name, Enabled: true}}
}

func TestHandleStatusChangedDeliversAndRecords(t *testing.T) {
	lead := leadsdomain.Lead{ID: uuid.New(), Name: "CRM-LEAD-2025-00003", FirstName: "Anna", MobileNo: "+39 333 123 4567"}
	f := newFixture(lead, enabled("confirmed", "Confirmed"))
	logID := uuid.New()

	outcome, err := f.engine.HandleStatusChanged(context.Background(), StatusChange{
		LeadID: lead.ID, LogEntryID: logID, OldStatus: "New", NewStatus: "Confirmed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %s", outcome)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(f.sender.sent))
	}
	sent := f.sender.sent[0]
	if sent.to != "393331234567" {
		t.Fatalf("expected lead mobile digits, got %q", sent.to)
	}
	if sent.label != "Status Change Notification" {
		t.Fatalf("unexpected label %q", sent.label)
	}
	if sent.ref.Type != domain.RefLead || sent.ref.ID != lead.ID {
		t.Fatalf("expected lead reference, got %+v", sent.ref)
	}
	rec := f.outbox.only(t)
	if rec.IdempotencyKey != "status:"+logID.String() || rec.Status != outbox.StatusSucceeded {
		t.Fatalf("unexpected outbox record %+v", rec)
	}
}

func TestHandleStatusChangedSkips(t *testing.T) {
	lead := leadsdomain.Lead{ID: uuid.New(), Name: "CRM-LEAD-2025-00003", MobileNo: "3331234567"}

	cases := []struct {
		name     string
		settings map[string]repository.Setting
		change   StatusChange
	}{
		{"same status", enabled("confirmed", "Confirmed"), StatusChange{OldStatus: "Confirmed", NewStatus: "Confirmed"}},
		{"empty status", enabled("confirmed", "Confirmed"), StatusChange{OldStatus: "New", NewStatus: "  "}},
		{"unknown status", enabled("confirmed", "Confirmed"), StatusChange{OldStatus: "New", NewStatus: "Shipped"}},
		{"no setting", map[string]repository.Setting{}, StatusChange{OldStatus: "New", NewStatus: "Confirmed"}},
		{"disabled", map[string]repository.Setting{"confirmed": {Slug: "confirmed", Enabled: false}}, StatusChange{OldStatus: "New", NewStatus: "Confirmed"}},
		{"silent", enabled("confirmed", "Confirmed"), StatusChange{OldStatus: "New", NewStatus: "Confirmed", Silent: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(lead, tc.settings)
			tc.change.LeadID = lead.ID
			tc.change.LogEntryID = uuid.New()

			outcome, err := f.engine.HandleStatusChanged(context.Background(), tc.change)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != OutcomeSkipped {
				t.Fatalf("expected skipped, got %s", outcome)
			}
			if len(f.sender.sent) != 0 || len(f.outbox.records) != 0 {
				t.Fatalf("expected nothing sent or queued")
			}
		})
	}
}

func TestHandleStatusChangedMatchesAliasAndCase(t *testing.T) {
	lead := leadsdomain.Lead{ID: uuid.New(), Name: "CRM-LEAD-2025-00003", MobileNo: "3331234567"}
	f := newFixture(lead, enabled("awaiting_payment", "Awaiting Payment"))

	outcome, err := f.engine.HandleStatusChanged(context.Background(), StatusChange{
		LeadID: lead.ID, LogEntryID: uuid.New(), OldStatus: "confirmed", NewStatus: "Attesa Pagamento",
	})
	if err != nil || outcome != OutcomeDelivered {
		t.Fatalf("expected delivery, got %s, %v", outcome, err)
	}
	if !strings.Contains(f.sender.sent[0].body, "from 'Confirmed' to 'Awaiting Payment'") {
		t.Fatalf("expected normalized names in body:\n%s", f.sender.sent[0].body)
	}
}

func TestHandleStatusChangedPhoneFallbacks(t *testing.T) {
	t.Run("contact by email", func(t *testing.T) {
		lead := leadsdomain.Lead{ID: uuid.New(), Name: "L", Email: "anna@example.com"}
		f := newFixture(lead, enabled("confirmed", "Confirmed"))
		if _, err := f.engine.HandleStatusChanged(context.Background(), StatusChange{LeadID: lead.ID, LogEntryID: uuid.New(), NewStatus: "Confirmed"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.sender.sent[0].to; got != "393331112222" {
			t.Fatalf("expected contact phone, got %q", got)
		}
	})

	t.Run("latest incoming message", func(t *testing.T) {
		lead := leadsdomain.Lead{ID: uuid.New(), Name: "L", Email: "unknown@example.com"}
		f := newFixture(lead, enabled("confirmed", "Confirmed"))
		if _, err := f.engine.HandleStatusChanged(context.Background(), StatusChange{LeadID: lead.ID, LogEntryID: uuid.New(), NewStatus: "Confirmed"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.sender.sent[0].to; got != "393330000000" {
			t.Fatalf("expected latest incoming phone, got %q", got)
		}
	})
}

func TestHandleStatusChangedIsIdempotentPerLogEntry(t *testing.T) {
	lead := leadsdomain.Lead{ID: uuid.New(), Name: "L", MobileNo: "3331234567"}
	f := newFixture(lead, enabled("confirmed", "Confirmed"))
	change := StatusChange{LeadID: lead.ID, LogEntryID: uuid.New(), OldStatus: "New", NewStatus: "Confirmed"}

	if _, err := f.engine.HandleStatusChanged(context.Background(), change); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outcome, err := f.engine.HandleStatusChanged(context.Background(), change)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDuplicate || len(f.sender.sent) != 1 {
		t.Fatalf("expected duplicate without resend, got %s and %d sends", outcome, len(f.sender.sent))
	}
}

func TestSendFailureIsQueuedForRetry(t *testing.T) {
	lead := leadsdomain.Lead{ID: uuid.New(), Name: "L", MobileNo: "3331234567"}
	f := newFixture(lead, enabled("confirmed", "Confirmed"))
	f.sender.err = errors.New("gateway down")

	outcome, err := f.engine.HandleStatusChanged(context.Background(), StatusChange{LeadID: lead.ID, LogEntryID: uuid.New(), NewStatus: "Confirmed"})
	if err != nil {
		t.Fatalf("expected send failure to be swallowed, got %v", err)
	}
	if outcome != OutcomeQueued {
		t.Fatalf("expected queued, got %s", outcome)
	}
	rec := f.outbox.only(t)
	if rec.Status != outbox.StatusPending || rec.LastError != "gateway down" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.RunAt.Equal(f.now.Add(time.Minute)) {
		t.Fatalf("expected retry in one minute, got %s", rec.RunAt)
	}

	f.now = f.now.Add(2 * time.Minute)
	if delivered, _ := f.engine.Deliver(context.Background(), rec.ID); delivered {
		t.Fatalf("expected second attempt to fail")
	}
	if !rec.RunAt.Equal(f.now.Add(4 * time.Minute)) {
		t.Fatalf("expected quadratic backoff, got %s", rec.RunAt)
	}

	f.sender.err = nil
	delivered, err := f.engine.Deliver(context.Background(), rec.ID)
	if err != nil || !delivered {
		t.Fatalf("expected retry to deliver, got %v, %v", delivered, err)
	}
	if rec.Status != outbox.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", rec.Status)
	}
}

func TestDeliverGivesUpAfterMaxAttempts(t *testing.T) {
	lead := leadsdomain.Lead{ID: uuid.New(), Name: "L", MobileNo: "3331234567"}
	f := newFixture(lead, enabled("confirmed", "Confirmed"))
	f.engine.maxAttempts = 2
	f.sender.err = errors.New("gateway down")

	if _, err := f.engine.HandleStatusChanged(context.Background(), StatusChange{LeadID: lead.ID, LogEntryID: uuid.New(), NewStatus: "Confirmed"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := f.outbox.only(t)
	if _, err := f.engine.Deliver(context.Background(), rec.ID); err == nil {
		t.Fatalf("expected send error")
	}
	if rec.Status != outbox.StatusFailed {
		t.Fatalf("expected failed after max attempts, got %s", rec.Status)
	}
	if delivered, err := f.engine.Deliver(context.Background(), rec.ID); delivered || err != nil {
		t.Fatalf("expected failed record to be unclaimable")
	}
}

func TestNotifyPreparationUsesDealMobile(t *testing.T) {
	lead := leadsdomain.Lead{ID: uuid.New(), Name: "CRM-LEAD-2025-00009", FirstName: "Anna", MobileNo: "3330000001"}
	f := newFixture(lead, nil)
	deal := leadsdomain.Deal{ID: uuid.New(), MobileNo: "+39 333 999 8888", NetTotal: 12}

	if err := f.engine.NotifyPreparation(context.Background(), lead, deal, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := f.sender.sent[0]
	if sent.to != "393339998888" {
		t.Fatalf("expected deal mobile, got %q", sent.to)
	}
	if sent.ref.Type != domain.RefDeal || sent.ref.ID != deal.ID {
		t.Fatalf("expected deal reference, got %+v", sent.ref)
	}
}

func TestRetryDelay(t *testing.T) {
	if RetryDelay(0) != time.Minute || RetryDelay(3) != 9*time.Minute {
		t.Fatalf("unexpected delays %s %s", RetryDelay(0), RetryDelay(3))
	}
}
