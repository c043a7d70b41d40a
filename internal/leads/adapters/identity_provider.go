package adapters

import (
	"context"
	"errors"
	"fmt"

	identitydomain "crm_workflow_backend/internal/identity/domain"
	identityrepo "crm_workflow_backend/internal/identity/repository"
	identitysvc "crm_workflow_backend/internal/identity/service"
	"crm_workflow_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// IdentityProviderAdapter implements ports.IdentityProvider using the
// identity service.
type IdentityProviderAdapter struct {
	svc *identitysvc.Service
}

func NewIdentityProviderAdapter(svc *identitysvc.Service) *IdentityProviderAdapter {
	return &IdentityProviderAdapter{svc: svc}
}

func (a *IdentityProviderAdapter) EnsureOrganization(ctx context.Context, in ports.OrganizationInput) (ports.Organization, error) {
	org, err := a.svc.EnsureOrganization(ctx, identityrepo.OrganizationParams{
		Name:          in.Name,
		Website:       in.Website,
		Territory:     in.Territory,
		Industry:      in.Industry,
		AnnualRevenue: in.AnnualRevenue,
	})
	if err != nil {
		return ports.Organization{}, err
	}
	return ports.Organization{ID: org.ID, Name: org.Name}, nil
}

func (a *IdentityProviderAdapter) LinkContactToOrganization(ctx context.Context, digits, email string, organizationID uuid.UUID) error {
	_, err := a.svc.LinkContactToOrganization(ctx, digits, email, organizationID)
	return err
}

func (a *IdentityProviderAdapter) FindContact(ctx context.Context, email string, phones ...string) (*ports.Contact, error) {
	contact, err := a.svc.ContactByEmailOrPhone(ctx, email, phones...)
	if errors.Is(err, identityrepo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact: %w", err)
	}
	out := toPortContact(contact)
	return &out, nil
}

func (a *IdentityProviderAdapter) CreateContact(ctx context.Context, in ports.NewContact) (ports.Contact, error) {
	contact, err := a.svc.CreateContact(ctx, identitysvc.NewContactInput{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		MobileNo:    in.MobileNo,
		Phone:       in.Phone,
		CompanyName: in.CompanyName,
	})
	if err != nil {
		return ports.Contact{}, err
	}
	return toPortContact(contact), nil
}

func (a *IdentityProviderAdapter) GetContact(ctx context.Context, id uuid.UUID) (ports.Contact, error) {
	contact, err := a.svc.GetContact(ctx, id)
	if err != nil {
		return ports.Contact{}, err
	}
	return toPortContact(contact), nil
}

func toPortContact(c identitydomain.Contact) ports.Contact {
	phones := make([]string, 0, len(c.Phones))
	for _, p := range c.Phones {
		phones = append(phones, p.Phone)
	}
	return ports.Contact{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		MobileNo:  c.MobileNo,
		Phone:     c.Phone,
		Phones:    phones,
	}
}

var _ ports.IdentityProvider = (*IdentityProviderAdapter)(nil)
