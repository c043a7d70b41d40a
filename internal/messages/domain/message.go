// Package domain holds the chat message model.
package domain

import (
	"time"

	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
)

// Direction tells whether a message was received or sent.
type Direction string

const (
	Incoming Direction = "Incoming"
	Outgoing Direction = "Outgoing"
)

const (
	ContentText     = "text"
	ContentReaction = "reaction"

	MessageTypeManual   = "Manual"
	MessageTypeTemplate = "Template"

	LabelManual = "Manual"
)

// Reference types a message can be attributed to.
const (
	RefLead = "lead"
	RefDeal = "deal"
)

// EntityRef points at a lead or a deal.
type EntityRef struct {
	Type string
	ID   uuid.UUID
}

// Message is one stored chat message. Body is nil when the channel carried
// no text.
type Message struct {
	ID                uuid.UUID
	ExternalID        string
	Type              Direction
	From              string
	To                string
	Body              *string
	ContentType       string
	MessageType       string
	TemplateName      string
	TemplateParams    []string
	HeaderParams      []string
	IsReply           bool
	ReplyToExternalID string
	ProfileName       string
	Label             string
	Status            string
	ReferenceType     string
	ReferenceID       *uuid.UUID
	CreatedAt         time.Time
}

// Counterpart is the customer side of the message: the sender of an
// incoming message, the recipient of an outgoing one.
func (m Message) Counterpart() string {
	if m.Type == Incoming {
		return m.From
	}
	return m.To
}

// CounterpartDigits is the canonical phone of Counterpart.
func (m Message) CounterpartDigits() string {
	return phone.Digits(m.Counterpart())
}

// Text returns the body or "".
func (m Message) Text() string {
	if m.Body == nil {
		return ""
	}
	return *m.Body
}

// Reference returns the attributed entity, if any.
func (m Message) Reference() (EntityRef, bool) {
	if m.ReferenceID == nil || (m.ReferenceType != RefLead && m.ReferenceType != RefDeal) {
		return EntityRef{}, false
	}
	return EntityRef{Type: m.ReferenceType, ID: *m.ReferenceID}, true
}

// Template is a stored message template with positional {{n}} placeholders.
type Template struct {
	Name     string
	Language string
	Header   string
	Body     string
	Footer   string
}

// OutboundMessage is what a channel delivers.
type OutboundMessage struct {
	To                string
	Text              string
	ReplyToExternalID string
	// Reaction marks Text as an emoji reaction to ReplyToExternalID.
	Reaction bool
}
