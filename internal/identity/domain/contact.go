// Package domain holds the identity types shared by the resolver and its
// callers: contacts, organizations and the verified phone capability.
package domain

import (
	"strings"
	"time"

	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
)

// ContactPhone is a secondary phone entry of a contact.
type ContactPhone struct {
	ID                uuid.UUID
	Phone             string
	IsPrimaryMobileNo bool
	IsPrimaryPhone    bool
}

// ContactEmail is a secondary email entry of a contact.
type ContactEmail struct {
	ID        uuid.UUID
	Email     string
	IsPrimary bool
}

// Contact is a person reachable on the messaging channel.
type Contact struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	MobileNo    string
	Phone       string
	CompanyName string
	Website     string
	Phones      []ContactPhone
	Emails      []ContactEmail
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName joins first and last name, skipping empty parts.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.Join([]string{strings.TrimSpace(c.FirstName), strings.TrimSpace(c.LastName)}, " "))
}

// OwnsPhone reports whether digits equals the canonical phone or any
// secondary phone of the contact after normalization.
func (c Contact) OwnsPhone(digits string) bool {
	digits = phone.Digits(digits)
	if digits == "" {
		return false
	}
	if phone.Digits(c.MobileNo) == digits {
		return true
	}
	for _, row := range c.Phones {
		if phone.Digits(row.Phone) == digits {
			return true
		}
	}
	return false
}

// PhoneDigits returns the digit keys of every phone the contact holds,
// without duplicates.
func (c Contact) PhoneDigits() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(c.Phones)+2)
	add := func(raw string) {
		d := phone.Digits(raw)
		if d == "" {
			return
		}
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	add(c.MobileNo)
	add(c.Phone)
	for _, row := range c.Phones {
		add(row.Phone)
	}
	return out
}

// PrettyPhoneUpdate computes the pretty rewrite for the fields holding
// digits. It returns the new mobile number, the primary mobile row to
// rewrite (uuid.Nil when none) and whether anything changed. Fields holding
// another number are left alone.
func (c Contact) PrettyPhoneUpdate(digits string) (mobile string, rowID uuid.UUID, changed bool) {
	pretty := phone.Display(digits)
	mobile = c.MobileNo
	if pretty == "" {
		return mobile, uuid.Nil, false
	}

	current := strings.TrimSpace(c.MobileNo)
	if current == "" || (phone.Digits(current) == phone.Digits(digits) && current != pretty) {
		mobile = pretty
		changed = true
	}

	for _, row := range c.Phones {
		if !row.IsPrimaryMobileNo {
			continue
		}
		if phone.Digits(row.Phone) == phone.Digits(digits) && strings.TrimSpace(row.Phone) != pretty {
			rowID = row.ID
			changed = true
		}
		break
	}
	return mobile, rowID, changed
}

// Organization is a company a contact, lead or deal belongs to. Names are unique.
type Organization struct {
	ID            uuid.UUID
	Name          string
	Website       string
	Territory     string
	Industry      string
	AnnualRevenue float64
	CreatedAt     time.Time
}
