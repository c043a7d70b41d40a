package thread

import (
	"context"
	"errors"
	"strings"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/platform/logger"
)

// nameResolver derives sender names and caches them per reference for the
// lifetime of one thread.
type nameResolver struct {
	dir   Directory
	log   *logger.Logger
	cache map[domain.EntityRef]string
}

func newNameResolver(dir Directory, log *logger.Logger) *nameResolver {
	return &nameResolver{dir: dir, log: log, cache: map[domain.EntityRef]string{}}
}

// displayName is "You" for our own messages without a sender, else the name of the
// attributed lead or deal customer, else the profile name, the raw address
// or "Unknown".
func (n *nameResolver) displayName(ctx context.Context, m domain.Message) string {
	from := strings.TrimSpace(m.From)
	if m.Type == domain.Outgoing && from == "" {
		return youName
	}
	if ref, ok := m.Reference(); ok {
		if name := n.referenceName(ctx, ref); name != "" {
			return name
		}
	}
	if m.ProfileName != "" {
		return m.ProfileName
	}
	if from != "" {
		return from
	}
	return unknownName
}

func (n *nameResolver) referenceName(ctx context.Context, ref domain.EntityRef) string {
	if name, ok := n.cache[ref]; ok {
		return name
	}
	name, err := n.lookup(ctx, ref)
	if err != nil && !errors.Is(err, ErrEntityNotFound) {
		n.log.Warn("display name lookup failed", "referenceType", ref.Type, "referenceId", ref.ID, "error", err)
	}
	n.cache[ref] = name
	return name
}

func (n *nameResolver) lookup(ctx context.Context, ref domain.EntityRef) (string, error) {
	switch ref.Type {
	case domain.RefLead:
		lead, err := n.dir.Lead(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(lead.FirstName + " " + lead.LastName), nil
	case domain.RefDeal:
		deal, err := n.dir.Deal(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		if deal.PrimaryContactID != nil {
			c, err := n.dir.Contact(ctx, *deal.PrimaryContactID)
			if err != nil {
				return "", err
			}
			if name := strings.TrimSpace(c.FullName); name != "" {
				return name, nil
			}
			return c.MobileNo, nil
		}
		return deal.LeadName, nil
	}
	return "", nil
}
