// Package ports defines consumer-driven interfaces for external dependencies.
// These interfaces are defined in the Leads domain based on what it needs,
// rather than what other domains choose to offer.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// Organization is the minimal organization data the leads domain needs.
type Organization struct {
	ID   uuid.UUID
	Name string
}

// OrganizationInput describes an organization to find or create.
type OrganizationInput struct {
	Name          string
	Website       string
	Territory     string
	Industry      string
	AnnualRevenue float64
}

// Contact is the minimal contact data the leads domain needs.
type Contact struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	MobileNo  string
	Phone     string
	Phones    []string
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// NewContact describes a contact created during conversion.
type NewContact struct {
	FirstName   string
	LastName    string
	Email       string
	MobileNo    string
	Phone       string
	CompanyName string
}

// IdentityProvider resolves and creates contacts and organizations.
// The identity module's service implements it through an adapter.
type IdentityProvider interface {
	EnsureOrganization(ctx context.Context, in OrganizationInput) (Organization, error)
	// LinkContactToOrganization links the contact owning digits (or email) to
	// the organization. No matching contact is not an error.
	LinkContactToOrganization(ctx context.Context, digits, email string, organizationID uuid.UUID) error
	// FindContact returns nil when no contact matches any of the keys.
	FindContact(ctx context.Context, email string, phones ...string) (*Contact, error)
	CreateContact(ctx context.Context, in NewContact) (Contact, error)
	GetContact(ctx context.Context, id uuid.UUID) (Contact, error)
}
