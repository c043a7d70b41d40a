package thread

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrEntityNotFound is returned by a Directory for unknown ids.
var ErrEntityNotFound = errors.New("entity not found")

// LeadView is the part of a lead the thread needs.
type LeadView struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	MobileNo  string
	Phone     string
}

// DealView is the part of a deal the thread needs.
type DealView struct {
	ID               uuid.UUID
	MobileNo         string
	LeadID           *uuid.UUID
	LeadName         string
	PrimaryContactID *uuid.UUID
	ContactIDs       []uuid.UUID
}

// ContactView is a contact with every phone it owns.
type ContactView struct {
	ID       uuid.UUID
	FullName string
	MobileNo string
	Phone    string
	Phones   []string
}

// Directory resolves the entities a thread is assembled for.
type Directory interface {
	Lead(ctx context.Context, id uuid.UUID) (LeadView, error)
	Deal(ctx context.Context, id uuid.UUID) (DealView, error)
	Contact(ctx context.Context, id uuid.UUID) (ContactView, error)
}
