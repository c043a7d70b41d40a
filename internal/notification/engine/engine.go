// Package engine turns lead status changes into customer notifications.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	leadsdomain "crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/internal/messages/service"
	"crm_workflow_backend/internal/notification/outbox"
	"crm_workflow_backend/internal/notification/repository"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
)

const defaultMaxAttempts = 5

// LeadReader reads the lead side of a notification.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (leadsdomain.Lead, error)
	LeadProducts(ctx context.Context, leadID uuid.UUID) ([]leadsdomain.ProductLine, error)
	StatusNames(ctx context.Context, entity leadsdomain.EntityKind) ([]string, error)
}

// ContactFinder resolves a phone from a contact's email. It returns "" when
// no contact or no phone is known.
type ContactFinder interface {
	PhoneByEmail(ctx context.Context, email string) (string, error)
}

// MessageLookup finds the last phone a customer wrote from.
type MessageLookup interface {
	LatestIncomingPhone(ctx context.Context, referenceType string, referenceID uuid.UUID) (string, error)
}

// Sender delivers and records an outgoing notification.
type Sender interface {
	SendNotification(ctx context.Context, to, body, label string, ref domain.EntityRef) (domain.Message, error)
}

type SettingsStore interface {
	GetSetting(ctx context.Context, slug string) (repository.Setting, error)
	PaymentInstructions(ctx context.Context) (string, error)
}

type Outbox interface {
	Insert(ctx context.Context, p outbox.InsertParams) (outbox.Record, bool, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (outbox.Record, bool, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError string, runAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// StatusChange is one committed lead status transition.
type StatusChange struct {
	LeadID     uuid.UUID
	LogEntryID uuid.UUID
	OldStatus  string
	NewStatus  string
	Silent     bool
}

// Outcome reports what HandleStatusChanged did.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeQueued    Outcome = "queued"
	OutcomeDelivered Outcome = "delivered"
	OutcomeDuplicate Outcome = "duplicate"
)

type Engine struct {
	leads       LeadReader
	contacts    ContactFinder
	messages    MessageLookup
	sender      Sender
	settings    SettingsStore
	outbox      Outbox
	workflow    *config.WorkflowDefaults
	composer    *Composer
	log         *logger.Logger
	now         func() time.Time
	maxAttempts int
}

type Dependencies struct {
	Leads    LeadReader
	Contacts ContactFinder
	Messages MessageLookup
	Sender   Sender
	Settings SettingsStore
	Outbox   Outbox
}

func New(deps Dependencies, workflow *config.WorkflowDefaults, log *logger.Logger) *Engine {
	return &Engine{
		leads:       deps.Leads,
		contacts:    deps.Contacts,
		messages:    deps.Messages,
		sender:      deps.Sender,
		settings:    deps.Settings,
		outbox:      deps.Outbox,
		workflow:    workflow,
		composer:    NewComposer(workflow),
		log:         log,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
}

// HandleStatusChanged notifies the customer of a status transition when the
// status has an enabled notification setting and a phone can be resolved.
// Delivery failures are scheduled for retry and never returned.
func (e *Engine) HandleStatusChanged(ctx context.Context, change StatusChange) (Outcome, error) {
	if change.Silent || change.OldStatus == change.NewStatus || strings.TrimSpace(change.NewStatus) == "" {
		return OutcomeSkipped, nil
	}

	names, err := e.leads.StatusNames(ctx, leadsdomain.EntityLead)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load lead statuses: %w", err)
	}
	catalog := leadsdomain.NewStatusCatalog(names, e.workflow.Aliases)
	newStatus, ok := catalog.Normalize(change.NewStatus)
	if !ok {
		e.log.Warn("status change to unknown status", "leadId", change.LeadID, "status", change.NewStatus)
		return OutcomeSkipped, nil
	}
	oldStatus := change.OldStatus
	if normalized, ok := catalog.Normalize(oldStatus); ok {
		oldStatus = normalized
	}

	setting, err := e.settings.GetSetting(ctx, leadsdomain.StatusSlug(newStatus))
	if errors.Is(err, repository.ErrNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load notification setting: %w", err)
	}
	if !setting.Enabled {
		return OutcomeSkipped, nil
	}

	lead, err := e.leads.GetLead(ctx, change.LeadID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load lead: %w", err)
	}

	to, err := e.resolvePhone(ctx, lead)
	if err != nil {
		return OutcomeSkipped, err
	}
	if to == "" {
		e.log.Info("no phone for status notification", "leadId", lead.ID, "status", newStatus)
		return OutcomeSkipped, nil
	}

	msg := StatusMessage{
		Lead:      lead,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Custom:    setting.CustomMessage,
	}
	if newStatus == e.workflow.Statuses.AwaitingPayment {
		lines, err := e.leads.LeadProducts(ctx, lead.ID)
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("load lead products: %w", err)
		}
		msg.Lines = lines
		instructions, err := e.settings.PaymentInstructions(ctx)
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("load payment instructions: %w", err)
		}
		msg.PaymentInstructions = instructions
	}

	return e.enqueue(ctx, "status:"+change.LogEntryID.String(), lead.ID, to, e.composer.Status(msg))
}

// NotifyPreparation sends the "order in preparation" message for a
// converted lead.
func (e *Engine) NotifyPreparation(ctx context.Context, lead leadsdomain.Lead, deal leadsdomain.Deal, lines []leadsdomain.ProductLine) error {
	to := phone.Digits(deal.MobileNo)
	if to == "" {
		resolved, err := e.resolvePhone(ctx, lead)
		if err != nil {
			return err
		}
		to = resolved
	}
	if to == "" {
		return fmt.Errorf("no phone for lead %s", lead.ID)
	}

	netTotal := deal.NetTotal
	if netTotal == 0 {
		netTotal = lead.NetTotal
	}
	body := e.composer.Preparation(lead, lines, netTotal)
	if _, err := e.sender.SendNotification(ctx, to, body, service.StatusNotificationLabel, domain.EntityRef{Type: domain.RefDeal, ID: deal.ID}); err != nil {
		return fmt.Errorf("send preparation message: %w", err)
	}
	return nil
}

func (e *Engine) resolvePhone(ctx context.Context, lead leadsdomain.Lead) (string, error) {
	if digits := phone.Digits(lead.MobileNo); digits != "" {
		return digits, nil
	}
	if digits := phone.Digits(lead.Phone); digits != "" {
		return digits, nil
	}
	if lead.Email != "" && e.contacts != nil {
		found, err := e.contacts.PhoneByEmail(ctx, lead.Email)
		if err != nil {
			return "", fmt.Errorf("find contact phone: %w", err)
		}
		if digits := phone.Digits(found); digits != "" {
			return digits, nil
		}
	}
	if e.messages != nil {
		latest, err := e.messages.LatestIncomingPhone(ctx, string(domain.RefLead), lead.ID)
		if err != nil {
			return "", fmt.Errorf("find latest incoming phone: %w", err)
		}
		return phone.Digits(latest), nil
	}
	return "", nil
}

func (e *Engine) enqueue(ctx context.Context, key string, leadID uuid.UUID, to, body string) (Outcome, error) {
	rec, created, err := e.outbox.Insert(ctx, outbox.InsertParams{
		IdempotencyKey: key,
		LeadID:         &leadID,
		Recipient:      to,
		Body:           body,
		Label:          service.StatusNotificationLabel,
		RunAt:          e.now(),
	})
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("insert outbox record: %w", err)
	}
	if !created {
		return OutcomeDuplicate, nil
	}

	delivered, err := e.Deliver(ctx, rec.ID)
	if err != nil {
		e.log.Error("status notification delivery failed", "leadId", leadID, "outboxId", rec.ID, "error", err)
		return OutcomeQueued, nil
	}
	if !delivered {
		return OutcomeQueued, nil
	}
	return OutcomeDelivered, nil
}

// Deliver attempts one outbox record. A failed send is rescheduled with
// quadratic backoff until the attempt budget is spent. It reports false
// when the record was not claimable or the send failed.
func (e *Engine) Deliver(ctx context.Context, id uuid.UUID) (bool, error) {
	rec, claimed, err := e.outbox.MarkProcessing(ctx, id)
	if err != nil {
		return false, fmt.Errorf("claim outbox record: %w", err)
	}
	if !claimed {
		return false, nil
	}

	ref := domain.EntityRef{}
	if rec.LeadID != nil {
		ref = domain.EntityRef{Type: domain.RefLead, ID: *rec.LeadID}
	}
	_, sendErr := e.sender.SendNotification(ctx, rec.Recipient, rec.Body, rec.Label, ref)
	if sendErr == nil {
		if err := e.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
			return true, fmt.Errorf("mark outbox succeeded: %w", err)
		}
		return true, nil
	}

	e.log.Warn("notification send failed", "outboxId", rec.ID, "attempt", rec.Attempts, "error", sendErr)
	if rec.Attempts >= e.maxAttempts {
		if err := e.outbox.MarkFailed(ctx, rec.ID, sendErr.Error()); err != nil {
			return false, fmt.Errorf("mark outbox failed: %w", err)
		}
		return false, sendErr
	}
	next := e.now().Add(RetryDelay(rec.Attempts))
	if err := e.outbox.MarkPending(ctx, rec.ID, sendErr.Error(), next); err != nil {
		return false, fmt.Errorf("reschedule outbox record: %w", err)
	}
	return false, sendErr
}

// RetryDelay is attempts² minutes.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts*attempts) * time.Minute
}
