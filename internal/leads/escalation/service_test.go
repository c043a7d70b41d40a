package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/leadstest"
	"crm_workflow_backend/internal/leads/management"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newSweeper() (*Service, *leadstest.Repository, *[]events.LeadStatusChanged) {
	repo := leadstest.New()
	repo.Now = func() time.Time { return now }
	bus := events.NewInMemoryBus(logger.Nop())
	var changes []events.LeadStatusChanged
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		changes = append(changes, e.(events.LeadStatusChanged))
		return nil
	}))
	mgmt := management.New(repo, bus, nil, logger.Nop())
	cfg := Config{AwaitingPayment: "Awaiting Payment", NotPaid: "Not Paid", After: 72 * time.Hour}
	return New(repo, mgmt, bus, cfg, logger.Nop()), repo, &changes
}

func awaiting(repo *leadstest.Repository, since time.Time) domain.Lead {
	lead := repo.AddLead(domain.Lead{FirstName: "Anna", LastName: "Rossi", Status: "Awaiting Payment"})
	repo.AddLogEntry(domain.StatusLogEntry{LeadID: lead.ID, FromStatus: "New", ToStatus: "Awaiting Payment", ChangedAt: since})
	return lead
}

func TestSweepEscalatesOnlyExpiredLeads(t *testing.T) {
	svc, repo, changes := newSweeper()
	old := awaiting(repo, now.Add(-73*time.Hour))
	fresh := awaiting(repo, now.Add(-71*time.Hour))

	report, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Escalated) != 1 || report.Escalated[0].ID != old.ID {
		t.Fatalf("expected only the expired lead escalated, got %+v", report.Escalated)
	}
	if repo.Leads[old.ID].Status != "Not Paid" || repo.Leads[fresh.ID].Status != "Awaiting Payment" {
		t.Fatalf("unexpected statuses after sweep")
	}
	if len(*changes) != 1 || (*changes)[0].ChangedBy != SweepActor || (*changes)[0].NewStatus != "Not Paid" {
		t.Fatalf("expected escalation through the status save path, got %+v", *changes)
	}
}

func TestSweepUsesLatestEntryIntoAwaitingPayment(t *testing.T) {
	svc, repo, _ := newSweeper()
	lead := awaiting(repo, now.Add(-10*24*time.Hour))
	repo.AddLogEntry(domain.StatusLogEntry{LeadID: lead.ID, FromStatus: "Rescheduled", ToStatus: "Awaiting Payment", ChangedAt: now.Add(-24 * time.Hour)})

	report, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Escalated) != 0 {
		t.Fatalf("expected re-entry to reset the clock")
	}
}

func TestSweepSkipsLeadsWithoutTimestamp(t *testing.T) {
	svc, repo, _ := newSweeper()
	lead := repo.AddLead(domain.Lead{FirstName: "Luca", Status: "Awaiting Payment"})

	report, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Skipped != 1 || repo.Leads[lead.ID].Status != "Awaiting Payment" {
		t.Fatalf("expected lead without history skipped, got %+v", report)
	}
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	svc, repo, _ := newSweeper()
	broken := awaiting(repo, now.Add(-100*time.Hour))
	ok := awaiting(repo, now.Add(-100*time.Hour))
	repo.FailUpdateStatus[broken.ID] = errors.New("deadlock detected")

	report, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 || len(report.Escalated) != 1 || report.Escalated[0].ID != ok.ID {
		t.Fatalf("expected one failure and one escalation, got %+v", report)
	}
}

// editingRepository moves the lead elsewhere right after the sweeper has read
// its awaiting-payment timestamp, as a concurrent manual edit would.
type editingRepository struct {
	*leadstest.Repository
	edit func(leadID uuid.UUID)
}

func (r *editingRepository) LatestTransitionInto(ctx context.Context, leadID uuid.UUID, status string) (domain.StatusLogEntry, error) {
	entry, err := r.Repository.LatestTransitionInto(ctx, leadID, status)
	if err == nil && r.edit != nil {
		r.edit(leadID)
	}
	return entry, err
}

func TestSweepKeepsConcurrentStatusEdit(t *testing.T) {
	repo := leadstest.New()
	repo.Now = func() time.Time { return now }
	bus := events.NewInMemoryBus(logger.Nop())
	var changes []events.LeadStatusChanged
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		changes = append(changes, e.(events.LeadStatusChanged))
		return nil
	}))
	mgmt := management.New(repo, bus, nil, logger.Nop())
	cfg := Config{AwaitingPayment: "Awaiting Payment", NotPaid: "Not Paid", After: 72 * time.Hour}

	lead := awaiting(repo, now.Add(-100*time.Hour))
	editing := &editingRepository{Repository: repo, edit: func(id uuid.UUID) {
		if _, err := mgmt.UpdateStatus(context.Background(), management.StatusUpdate{LeadID: id, Status: "Confirmed", ChangedBy: "operator"}); err != nil {
			t.Fatalf("manual edit failed: %v", err)
		}
	}}
	svc := New(editing, mgmt, bus, cfg, logger.Nop())

	report, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.Leads[lead.ID].Status; got != "Confirmed" {
		t.Fatalf("expected manual edit to stand, got status %q", got)
	}
	if report.Skipped != 1 || report.Failed != 0 || len(report.Escalated) != 0 {
		t.Fatalf("expected lead counted as skipped, got %+v", report)
	}
	for _, c := range changes {
		if c.ChangedBy == SweepActor {
			t.Fatalf("expected no status change by the sweeper, got %+v", c)
		}
	}
	for _, entry := range repo.LogFor(lead.ID) {
		if entry.ToStatus == "Not Paid" {
			t.Fatalf("expected no not-paid log entry, got %+v", entry)
		}
	}
}
