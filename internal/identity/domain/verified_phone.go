package domain

import (
	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
)

// VerifiedPhone is proof that a phone number belongs to a specific contact.
// The zero value is not verified. Outside this package it can only be
// obtained from Verify, so any function taking a VerifiedPhone can rely on
// the ownership check having happened.
type VerifiedPhone struct {
	contactID uuid.UUID
	digits    string
}

// Verify returns a VerifiedPhone when digits belongs to contact.
func Verify(contact Contact, digits string) (VerifiedPhone, bool) {
	digits = phone.Digits(digits)
	if contact.ID == uuid.Nil || !contact.OwnsPhone(digits) {
		return VerifiedPhone{}, false
	}
	return VerifiedPhone{contactID: contact.ID, digits: digits}, true
}

// ContactID is the contact the phone was verified against.
func (v VerifiedPhone) ContactID() uuid.UUID { return v.contactID }

// Digits is the canonical digit key.
func (v VerifiedPhone) Digits() string { return v.digits }

// IsZero reports whether v carries no verification.
func (v VerifiedPhone) IsZero() bool { return v.contactID == uuid.Nil || v.digits == "" }
