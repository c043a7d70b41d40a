package messages

import (
	"context"

	"crm_workflow_backend/internal/messages/service"
	"crm_workflow_backend/internal/sms"
	"crm_workflow_backend/internal/whatsapp"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/logger"
)

// ChannelConfig combines the settings of every delivery channel.
type ChannelConfig interface {
	config.WhatsAppConfig
	config.SMSConfig
}

// NewChannel builds the outbound channel: the WhatsApp gateway first, SNS
// text messages as fallback. Unconfigured channels are left out.
func NewChannel(ctx context.Context, cfg ChannelConfig, log *logger.Logger) service.Channel {
	var primary, secondary service.Channel

	if wa := whatsapp.NewClient(cfg, log); wa != nil {
		primary = wa
	} else {
		log.Warn("WHATSAPP_URL not configured; chat delivery disabled")
	}

	smsClient, err := sms.NewClient(ctx, cfg, log)
	switch {
	case err != nil:
		log.Error("failed to initialize sms fallback", "error", err)
	case smsClient != nil:
		secondary = smsClient
	}

	return service.NewFallbackChannel(primary, secondary, log)
}
