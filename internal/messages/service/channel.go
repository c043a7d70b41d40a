package service

import (
	"context"
	"errors"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/platform/logger"
)

var errNoChannel = errors.New("no messaging channel available")

// FallbackChannel sends through primary and falls back to secondary when
// primary is missing or fails. Reactions never fall back.
type FallbackChannel struct {
	primary   Channel
	secondary Channel
	log       *logger.Logger
}

// NewFallbackChannel combines two channels; either may be nil.
func NewFallbackChannel(primary, secondary Channel, log *logger.Logger) *FallbackChannel {
	return &FallbackChannel{primary: primary, secondary: secondary, log: log}
}

func (c *FallbackChannel) Send(ctx context.Context, msg domain.OutboundMessage) (string, error) {
	if c.primary != nil {
		id, err := c.primary.Send(ctx, msg)
		if err == nil {
			return id, nil
		}
		if c.secondary == nil || msg.Reaction {
			return "", err
		}
		c.log.Warn("primary channel failed, using fallback", "error", err)
	}
	if c.secondary == nil || msg.Reaction {
		return "", errNoChannel
	}
	return c.secondary.Send(ctx, msg)
}
