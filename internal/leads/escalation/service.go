// Package escalation moves leads that waited too long for payment to the
// not-paid status.
package escalation

import (
	"context"
	"errors"
	"time"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/management"
	"crm_workflow_backend/internal/leads/repository"
	"crm_workflow_backend/platform/logger"

	"github.com/google/uuid"
)

// SweepActor is recorded as the author of escalations.
const SweepActor = "payment-sweeper"

// Repository is what the sweeper reads.
type Repository interface {
	ListByStatus(ctx context.Context, status string) ([]domain.Lead, error)
	LatestTransitionInto(ctx context.Context, leadID uuid.UUID, status string) (domain.StatusLogEntry, error)
}

// StatusUpdater is the lead status save path.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, req management.StatusUpdate) (domain.Lead, error)
}

// Config names the two statuses and the waiting threshold.
type Config struct {
	AwaitingPayment string
	NotPaid         string
	After           time.Duration
}

// EscalatedLead is one lead moved by a sweep.
type EscalatedLead struct {
	ID            uuid.UUID
	Name          string
	Customer      string
	AwaitingSince time.Time
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Checked   int
	Escalated []EscalatedLead
	Skipped   int
	Failed    int
}

type Service struct {
	repo   Repository
	status StatusUpdater
	bus    events.Publisher
	cfg    Config
	log    *logger.Logger
}

func New(repo Repository, status StatusUpdater, bus events.Publisher, cfg Config, log *logger.Logger) *Service {
	return &Service{repo: repo, status: status, bus: bus, cfg: cfg, log: log.WithComponent("leads.escalation")}
}

// Sweep escalates every lead whose latest move into the awaiting-payment
// status is older than the threshold. Leads without such a log entry, or
// moved elsewhere while the sweep ran, are skipped. A failing lead is
// logged and the sweep goes on.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	leads, err := s.repo.ListByStatus(ctx, s.cfg.AwaitingPayment)
	if err != nil {
		return SweepReport{}, err
	}

	cutoff := now.Add(-s.cfg.After)
	report := SweepReport{Checked: len(leads)}
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry, err := s.repo.LatestTransitionInto(ctx, lead.ID, s.cfg.AwaitingPayment)
		if errors.Is(err, repository.ErrNotFound) {
			report.Skipped++
			continue
		}
		if err != nil {
			report.Failed++
			s.log.Error("load awaiting payment timestamp", "leadId", lead.ID, "error", err)
			continue
		}
		if !entry.ChangedAt.Before(cutoff) {
			continue
		}

		_, err = s.status.UpdateStatus(ctx, management.StatusUpdate{
			LeadID:         lead.ID,
			Status:         s.cfg.NotPaid,
			ExpectedStatus: s.cfg.AwaitingPayment,
			ChangedBy:      SweepActor,
		})
		if errors.Is(err, repository.ErrStatusChanged) {
			report.Skipped++
			s.log.Info("lead left awaiting payment during sweep", "leadId", lead.ID)
			continue
		}
		if err != nil {
			report.Failed++
			s.log.Error("escalate lead", "leadId", lead.ID, "error", err)
			continue
		}

		report.Escalated = append(report.Escalated, EscalatedLead{
			ID:            lead.ID,
			Name:          lead.Name,
			Customer:      lead.LeadName(),
			AwaitingSince: entry.ChangedAt,
		})
		s.bus.Publish(ctx, events.LeadPaymentEscalated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			LeadName:  lead.Name,
		})
	}

	s.log.Info("payment sweep finished",
		"checked", report.Checked,
		"escalated", len(report.Escalated),
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}
