package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversionStep names one step of the lead-to-deal conversion.
type ConversionStep string

const (
	StepContact      ConversionStep = "contact"
	StepOrganization ConversionStep = "organization"
	StepDeal         ConversionStep = "deal"
	StepProducts     ConversionStep = "products"
	StepLeadStatus   ConversionStep = "lead_status"
	StepNotify       ConversionStep = "notify"
)

// ConversionSteps is the execution order.
var ConversionSteps = []ConversionStep{
	StepContact,
	StepOrganization,
	StepDeal,
	StepProducts,
	StepLeadStatus,
	StepNotify,
}

// StepState is the recorded outcome of a step.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepFailed    StepState = "failed"
	StepSkipped   StepState = "skipped"
)

// StepRecord is one row of the conversion log. RefID points at the row the
// step produced, when it produced one.
type StepRecord struct {
	Step      ConversionStep
	State     StepState
	RefID     *uuid.UUID
	Error     string
	Attempts  int
	UpdatedAt time.Time
}

// Done reports whether a retry may skip the step.
func (r StepRecord) Done() bool {
	return r.State == StepCompleted || r.State == StepSkipped
}
