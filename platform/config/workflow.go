package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed workflow_defaults.yaml
var defaultWorkflowYAML []byte

// StatusRefs names the statuses the workflow treats specially. They are
// references into the runtime status vocabulary, never compared as literals
// elsewhere in the code.
type StatusRefs struct {
	LeadInitial     string `yaml:"lead_initial"`
	DealInitial     string `yaml:"deal_initial"`
	AwaitingPayment string `yaml:"awaiting_payment"`
	NotPaid         string `yaml:"not_paid"`
	Accepted        string `yaml:"accepted"`
}

// MessageTemplates holds customer-facing text fragments. Placeholders use
// the {name} form.
type MessageTemplates struct {
	CustomerFallback string            `yaml:"customer_fallback"`
	ProductFallback  string            `yaml:"product_fallback"`
	Greeting         string            `yaml:"greeting"`
	ChangedTo        string            `yaml:"changed_to"`
	ChangedFromTo    string            `yaml:"changed_from_to"`
	SummaryHeader    string            `yaml:"summary_header"`
	SummaryTotal     string            `yaml:"summary_total"`
	PaymentHeader    string            `yaml:"payment_header"`
	GenericStatus    string            `yaml:"generic_status"`
	Preparation      string            `yaml:"preparation"`
	StatusDefaults   map[string]string `yaml:"status_defaults"`
}

// PaymentDefaults is the structured payment block used when no free-text
// instructions are configured.
type PaymentDefaults struct {
	Currency       string `yaml:"currency"`
	CurrencySymbol string `yaml:"currency_symbol"`
	BankName       string `yaml:"bank_name"`
	IBAN           string `yaml:"iban"`
	SWIFT          string `yaml:"swift"`
	AccountHolder  string `yaml:"account_holder"`
	Reference      string `yaml:"reference"`
	PayPalEmail    string `yaml:"paypal_email"`
	Instructions   string `yaml:"instructions"`
}

// WorkflowDefaults is the deployment-level workflow document.
type WorkflowDefaults struct {
	Statuses               StatusRefs        `yaml:"statuses"`
	PaymentEscalationAfter string            `yaml:"payment_escalation_after"`
	Labels                 map[string]string `yaml:"labels"`
	Aliases                map[string]string `yaml:"aliases"`
	Messages               MessageTemplates  `yaml:"messages"`
	Payment                PaymentDefaults   `yaml:"payment"`

	escalationAfter time.Duration
}

// EscalationAfter is how long a lead may wait for payment before it is
// escalated.
func (w *WorkflowDefaults) EscalationAfter() time.Duration {
	return w.escalationAfter
}

// Label returns the customer-facing label for a status name.
func (w *WorkflowDefaults) Label(status string) string {
	if label, ok := w.Labels[status]; ok && strings.TrimSpace(label) != "" {
		return label
	}
	return status
}

// LoadWorkflowDefaults parses the embedded defaults, or the file at path
// when path is non-empty.
func LoadWorkflowDefaults(path string) (*WorkflowDefaults, error) {
	data := defaultWorkflowYAML
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return ParseWorkflowDefaults(data)
}

// ParseWorkflowDefaults decodes and validates a workflow document.
func ParseWorkflowDefaults(data []byte) (*WorkflowDefaults, error) {
	var w WorkflowDefaults
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workflow yaml: %w", err)
	}

	refs := map[string]string{
		"statuses.lead_initial":     w.Statuses.LeadInitial,
		"statuses.deal_initial":     w.Statuses.DealInitial,
		"statuses.awaiting_payment": w.Statuses.AwaitingPayment,
		"statuses.not_paid":         w.Statuses.NotPaid,
		"statuses.accepted":         w.Statuses.Accepted,
	}
	for key, value := range refs {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s is required", key)
		}
	}
	if w.Statuses.AwaitingPayment == w.Statuses.NotPaid {
		return nil, fmt.Errorf("statuses.awaiting_payment and statuses.not_paid must differ")
	}

	w.escalationAfter = 72 * time.Hour
	if raw := strings.TrimSpace(w.PaymentEscalationAfter); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("payment_escalation_after: invalid duration %q", raw)
		}
		w.escalationAfter = d
	}

	if w.Labels == nil {
		w.Labels = map[string]string{}
	}
	if w.Aliases == nil {
		w.Aliases = map[string]string{}
	}
	if w.Messages.StatusDefaults == nil {
		w.Messages.StatusDefaults = map[string]string{}
	}
	if w.Payment.Currency == "" {
		w.Payment.Currency = "EUR"
	}

	return &w, nil
}

// MustDefaultWorkflow returns the embedded defaults; it panics if the
// embedded document is invalid.
func MustDefaultWorkflow() *WorkflowDefaults {
	w, err := ParseWorkflowDefaults(defaultWorkflowYAML)
	if err != nil {
		panic("embedded workflow defaults: " + err.Error())
	}
	return w
}
