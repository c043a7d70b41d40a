// Package domain holds the lead and deal models and the pure rules applied
// to them: line arithmetic, status naming and order number display.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommunicationReplied is the communication status of a lead or deal whose
// first response has been recorded.
const CommunicationReplied = "Replied"

// Lead is a prospective order.
type Lead struct {
	ID                  uuid.UUID
	Name                string
	FirstName           string
	LastName            string
	Email               string
	MobileNo            string
	Phone               string
	Organization        string
	Website             string
	Territory           string
	Industry            string
	AnnualRevenue       float64
	Source              string
	Status              string
	Converted           bool
	LeadOwner           string
	SLA                 string
	SLAStatus           string
	SLACreation         *time.Time
	ResponseBy          *time.Time
	FirstResponseTime   float64
	FirstRespondedOn    *time.Time
	CommunicationStatus string
	DeliveryDate        *time.Time
	DeliveryAddress     string
	OrderDate           *time.Time
	OrderDetails        json.RawMessage
	Total               float64
	NetTotal            float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LeadName is the customer-facing name of the lead: first and last name,
// or the first name alone.
func (l Lead) LeadName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}

// HasFirstResponse reports whether SLA tracking recorded a first response.
func (l Lead) HasFirstResponse() bool {
	return l.FirstRespondedOn != nil && !l.FirstRespondedOn.IsZero()
}

// OrderNotes extracts the "notes" entry of the order details document.
func (l Lead) OrderNotes() string {
	if len(l.OrderDetails) == 0 {
		return ""
	}
	var details struct {
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(l.OrderDetails, &details); err != nil {
		return ""
	}
	return strings.TrimSpace(details.Notes)
}

// Deal is a converted lead with its own lines and status vocabulary.
type Deal struct {
	ID                  uuid.UUID
	Name                string
	LeadID              *uuid.UUID
	OrganizationID      *uuid.UUID
	Status              string
	DealOwner           string
	MobileNo            string
	Website             string
	Territory           string
	Industry            string
	AnnualRevenue       float64
	Source              string
	SLA                 string
	SLAStatus           string
	SLACreation         *time.Time
	ResponseBy          *time.Time
	FirstResponseTime   float64
	FirstRespondedOn    *time.Time
	CommunicationStatus string
	ExpectedClosureDate *time.Time
	DeliveryDate        *time.Time
	DeliveryAddress     string
	OrderDate           *time.Time
	OrderNotes          string
	Total               float64
	NetTotal            float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// StatusLogEntry records one status transition of a lead.
type StatusLogEntry struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	FromStatus string
	ToStatus   string
	ChangedBy  string
	ChangedAt  time.Time
}

// EntityKind distinguishes the two status vocabularies.
type EntityKind string

const (
	EntityLead EntityKind = "lead"
	EntityDeal EntityKind = "deal"
)

// Status is one entry of a runtime status vocabulary.
type Status struct {
	ID       uuid.UUID
	Entity   EntityKind
	Name     string
	Position int
	Color    string
}
