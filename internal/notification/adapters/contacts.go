// Package adapters connects the notification engine to other modules.
package adapters

import (
	"context"
	"errors"

	identityrepo "crm_workflow_backend/internal/identity/repository"
	identitysvc "crm_workflow_backend/internal/identity/service"
)

// ContactPhones resolves a contact's phone through the identity service.
type ContactPhones struct {
	identity *identitysvc.Service
}

func NewContactPhones(identity *identitysvc.Service) *ContactPhones {
	return &ContactPhones{identity: identity}
}

// PhoneByEmail returns the mobile number, else the phone, of the contact
// owning email. No contact yields "".
func (a *ContactPhones) PhoneByEmail(ctx context.Context, email string) (string, error) {
	contact, err := a.identity.ContactByEmailOrPhone(ctx, email)
	if errors.Is(err, identityrepo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if contact.MobileNo != "" {
		return contact.MobileNo, nil
	}
	return contact.Phone, nil
}
