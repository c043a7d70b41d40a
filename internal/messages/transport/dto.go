package transport

import (
	"strings"
	"time"

	"crm_workflow_backend/internal/messages/domain"

	"github.com/google/uuid"
)

// SendMessageRequest sends a text, a template or a reaction. Reaction
// requires ReplyTo; TemplateName selects a template send.
type SendMessageRequest struct {
	To            string     `json:"to" validate:"omitempty,phone_digits"`
	Text          string     `json:"text" validate:"max=4096"`
	TemplateName  string     `json:"templateName" validate:"omitempty,max=140"`
	Params        []string   `json:"params" validate:"max=20"`
	HeaderParams  []string   `json:"headerParams" validate:"max=5"`
	ReplyTo       *uuid.UUID `json:"replyTo"`
	Reaction      string     `json:"reaction" validate:"omitempty,max=16"`
	ReferenceType string     `json:"referenceType" validate:"omitempty,oneof=lead deal"`
	ReferenceID   *uuid.UUID `json:"referenceId"`
}

// Reference returns the explicit attribution of the request, if any.
func (r SendMessageRequest) Reference() *domain.EntityRef {
	if r.ReferenceID == nil || r.ReferenceType == "" {
		return nil
	}
	return &domain.EntityRef{Type: r.ReferenceType, ID: *r.ReferenceID}
}

type MessageResponse struct {
	ID                uuid.UUID  `json:"id"`
	ExternalID        string     `json:"messageId"`
	Type              string     `json:"type"`
	From              string     `json:"from"`
	To                string     `json:"to"`
	Message           string     `json:"message"`
	ContentType       string     `json:"contentType"`
	MessageType       string     `json:"messageType"`
	TemplateName      string     `json:"templateName,omitempty"`
	TemplateParams    []string   `json:"templateParams,omitempty"`
	IsReply           bool       `json:"isReply"`
	ReplyToExternalID string     `json:"replyToMessageId,omitempty"`
	Label             string     `json:"label,omitempty"`
	Status            string     `json:"status,omitempty"`
	ReferenceType     string     `json:"referenceType,omitempty"`
	ReferenceID       *uuid.UUID `json:"referenceId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func ToMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:                m.ID,
		ExternalID:        m.ExternalID,
		Type:              string(m.Type),
		From:              m.From,
		To:                m.To,
		Message:           m.Text(),
		ContentType:       m.ContentType,
		MessageType:       m.MessageType,
		TemplateName:      m.TemplateName,
		TemplateParams:    m.TemplateParams,
		IsReply:           m.IsReply,
		ReplyToExternalID: m.ReplyToExternalID,
		Label:             m.Label,
		Status:            m.Status,
		ReferenceType:     m.ReferenceType,
		ReferenceID:       m.ReferenceID,
		CreatedAt:         m.CreatedAt,
	}
}

// GatewayWebhook is the inbound event posted by the GoWA gateway.
type GatewayWebhook struct {
	SenderID string `json:"sender_id"`
	ChatID   string `json:"chat_id"`
	From     string `json:"from"`
	PushName string `json:"pushname"`
	Message  struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		RepliedID string `json:"replied_id"`
	} `json:"message"`
	Reaction struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"reaction"`
	Timestamp string `json:"timestamp"`
}

// Sender returns the bare phone of the sender. The gateway reports JIDs
// such as "393331234567@s.whatsapp.net" or "393331234567:12@s.whatsapp.net".
func (w GatewayWebhook) Sender() string {
	raw := w.SenderID
	if raw == "" {
		raw = w.From
	}
	if i := strings.Index(raw, " in "); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexAny(raw, ":@"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// IsReaction reports whether the event carries a reaction rather than text.
func (w GatewayWebhook) IsReaction() bool {
	return w.Reaction.Message != "" && w.Reaction.ID != ""
}

type WebhookResponse struct {
	ID        uuid.UUID `json:"id"`
	Duplicate bool      `json:"duplicate"`
}
