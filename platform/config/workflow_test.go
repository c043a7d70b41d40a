package config

import (
	"strings"
	"testing"
	"time"
)

func TestEmbeddedWorkflowDefaultsParse(t *testing.T) {
	w := MustDefaultWorkflow()

	if w.Statuses.AwaitingPayment != "Awaiting Payment" {
		t.Fatalf("unexpected awaiting payment ref %q", w.Statuses.AwaitingPayment)
	}
	if w.Statuses.NotPaid != "Not Paid" {
		t.Fatalf("unexpected not paid ref %q", w.Statuses.NotPaid)
	}
	if w.EscalationAfter() != 72*time.Hour {
		t.Fatalf("expected 72h escalation, got %s", w.EscalationAfter())
	}
	if w.Aliases["Attesa Pagamento"] != "Awaiting Payment" {
		t.Fatalf("expected alias for localized awaiting payment")
	}
	if !strings.Contains(w.Messages.Greeting, "{customer_name}") {
		t.Fatalf("expected greeting placeholder, got %q", w.Messages.Greeting)
	}
}

func TestParseWorkflowDefaultsRejectsMissingRefs(t *testing.T) {
	doc := []byte(`
statuses:
  lead_initial: New
  deal_initial: New
  awaiting_payment: Awaiting Payment
  accepted: Confirmed
`)
	if _, err := ParseWorkflowDefaults(doc); err == nil {
		t.Fatalf("expected missing not_paid to be rejected")
	}
}

func TestParseWorkflowDefaultsCustomThreshold(t *testing.T) {
	doc := []byte(`
statuses:
  lead_initial: Nuovo
  deal_initial: Nuovo
  awaiting_payment: In Attesa
  not_paid: Scaduto
  accepted: Accettato
payment_escalation_after: 24h
`)
	w, err := ParseWorkflowDefaults(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.EscalationAfter() != 24*time.Hour {
		t.Fatalf("expected 24h, got %s", w.EscalationAfter())
	}
	if w.Label("Scaduto") != "Scaduto" {
		t.Fatalf("expected unlabeled status to render by name")
	}
	if w.Payment.Currency != "EUR" {
		t.Fatalf("expected default currency EUR, got %q", w.Payment.Currency)
	}
}

func TestParseWorkflowDefaultsIgnoresRetiredKeys(t *testing.T) {
	doc := []byte(`
statuses:
  lead_initial: New
  deal_initial: New
  awaiting_payment: Awaiting Payment
  not_paid: Not Paid
  accepted: Confirmed
  deal_accepted: Preparation
`)
	w, err := ParseWorkflowDefaults(doc)
	if err != nil {
		t.Fatalf("expected older documents to keep parsing, got %v", err)
	}
	if w.Statuses.Accepted != "Confirmed" || w.Statuses.DealInitial != "New" {
		t.Fatalf("unexpected refs %+v", w.Statuses)
	}
}
