package ports

import (
	"context"

	"github.com/google/uuid"
)

// MessageLookup reads stored chat messages.
type MessageLookup interface {
	// LatestIncomingPhone returns the sender of the most recent Incoming
	// message referencing the entity, or "" when there is none.
	LatestIncomingPhone(ctx context.Context, referenceType string, referenceID uuid.UUID) (string, error)
}
