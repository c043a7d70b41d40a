package engine

import (
	"fmt"
	"strings"

	leadsdomain "crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/platform/config"
)

// Composer renders customer-facing notification text from the workflow
// message templates.
type Composer struct {
	workflow *config.WorkflowDefaults
}

func NewComposer(workflow *config.WorkflowDefaults) *Composer {
	return &Composer{workflow: workflow}
}

// StatusMessage is everything needed to render one status notification.
type StatusMessage struct {
	Lead      leadsdomain.Lead
	Lines     []leadsdomain.ProductLine
	OldStatus string
	NewStatus string
	// Custom is the configured text for the status; empty selects the
	// built-in default.
	Custom string
	// PaymentInstructions is the administrator text; empty selects the
	// structured default block.
	PaymentInstructions string
}

func fill(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

func (c *Composer) customerName(lead leadsdomain.Lead) string {
	if name := lead.LeadName(); name != "" {
		return name
	}
	return c.workflow.Messages.CustomerFallback
}

// Status renders the message for a transition into msg.NewStatus.
func (c *Composer) Status(msg StatusMessage) string {
	w := c.workflow
	orderNumber := leadsdomain.OrderNumber(msg.Lead.Name)
	vars := map[string]string{
		"customer_name": c.customerName(msg.Lead),
		"order_number":  orderNumber,
		"old_status":    w.Label(msg.OldStatus),
		"new_status":    w.Label(msg.NewStatus),
	}

	parts := []string{fill(w.Messages.Greeting, vars), ""}
	if msg.OldStatus == "" {
		parts = append(parts, fill(w.Messages.ChangedTo, vars))
	} else {
		parts = append(parts, fill(w.Messages.ChangedFromTo, vars))
	}

	awaitingPayment := msg.NewStatus == w.Statuses.AwaitingPayment
	if awaitingPayment && len(msg.Lines) > 0 {
		parts = append(parts, "")
		parts = append(parts, c.summary(msg.Lines, msg.Lead.NetTotal)...)
	}

	statusText := strings.TrimSpace(msg.Custom)
	if statusText == "" {
		statusText = w.Messages.StatusDefaults[msg.NewStatus]
	}
	if statusText == "" {
		statusText = fill(w.Messages.GenericStatus, vars)
	}
	parts = append(parts, "", statusText)

	if awaitingPayment {
		parts = append(parts, c.payment(orderNumber, msg.PaymentInstructions)...)
	}
	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}

// Preparation renders the message sent once an order has been accepted.
func (c *Composer) Preparation(lead leadsdomain.Lead, lines []leadsdomain.ProductLine, netTotal float64) string {
	vars := map[string]string{
		"customer_name": c.customerName(lead),
		"order_number":  leadsdomain.OrderNumber(lead.Name),
	}
	parts := []string{fill(c.workflow.Messages.Greeting, vars), "", fill(c.workflow.Messages.Preparation, vars)}
	if len(lines) > 0 {
		parts = append(parts, "")
		parts = append(parts, c.summary(lines, netTotal)...)
	}
	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}

func (c *Composer) summary(lines []leadsdomain.ProductLine, netTotal float64) []string {
	w := c.workflow
	symbol := w.Payment.CurrencySymbol
	if symbol == "" {
		symbol = w.Payment.Currency
	}

	out := []string{w.Messages.SummaryHeader, ""}
	for _, l := range lines {
		name := strings.TrimSpace(l.ProductName)
		if name == "" {
			name = w.Messages.ProductFallback
		}
		out = append(out, fmt.Sprintf("%s: %.1f x %s%.2f = %s%.2f", name, l.Qty, symbol, l.Rate, symbol, l.Amount))
	}
	out = append(out, "", fill(w.Messages.SummaryTotal, map[string]string{
		"currency":  w.Payment.Currency,
		"net_total": fmt.Sprintf("%.2f", netTotal),
	}))
	return out
}

func (c *Composer) payment(orderNumber, instructions string) []string {
	if text := strings.TrimSpace(instructions); text != "" {
		text = strings.NewReplacer("{numero_ordine}", orderNumber, "{order_number}", orderNumber).Replace(text)
		return []string{"", c.workflow.Messages.PaymentHeader, "", text}
	}

	p := c.workflow.Payment
	out := []string{"", c.workflow.Messages.PaymentHeader, ""}
	if p.IBAN != "" {
		out = append(out, "*Bank Transfer:*",
			"- Bank: "+p.BankName,
			"- IBAN: "+p.IBAN)
		if p.SWIFT != "" {
			out = append(out, "- SWIFT: "+p.SWIFT)
		}
		out = append(out,
			"- Account Holder: "+p.AccountHolder,
			"- Reference: "+fill(p.Reference, map[string]string{"order_number": orderNumber}),
			"")
	}
	if p.PayPalEmail != "" {
		out = append(out, "*PayPal:* "+p.PayPalEmail, "")
	}
	if p.Instructions != "" {
		out = append(out, p.Instructions)
	}
	return out
}
