// Package service stores chat messages and sends them through a channel.
package service

import (
	"context"
	"errors"
	"strings"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/internal/messages/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// StatusNotificationLabel marks messages sent by the status notification engine.
const StatusNotificationLabel = "Status Change Notification"

// Repository is the message storage the service needs.
type Repository interface {
	Insert(ctx context.Context, m domain.Message) (domain.Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Message, error)
	FindByExternalID(ctx context.Context, externalID string) (domain.Message, error)
	LatestIncomingPhone(ctx context.Context, ref domain.EntityRef) (string, error)
	GetTemplates(ctx context.Context, names []string) (map[string]domain.Template, error)
}

// Channel delivers a message and returns the id the network assigned to it.
// An empty id is allowed.
type Channel interface {
	Send(ctx context.Context, msg domain.OutboundMessage) (string, error)
}

// ReferenceDirectory finds the lead or deal a phone currently belongs to.
type ReferenceDirectory interface {
	LatestReferenceForPhone(ctx context.Context, digits string) (domain.EntityRef, bool, error)
}

type Service struct {
	repo    Repository
	channel Channel
	refs    ReferenceDirectory
	bus     events.Publisher
	log     *logger.Logger
}

// New creates the service. channel and refs may be nil: without a channel
// outbound sends fail, without a directory messages stay unattributed.
func New(repo Repository, channel Channel, refs ReferenceDirectory, bus events.Publisher, log *logger.Logger) *Service {
	return &Service{repo: repo, channel: channel, refs: refs, bus: bus, log: log}
}

// CreateInput describes a message to store.
type CreateInput struct {
	ExternalID     string
	Type           domain.Direction
	From           string
	To             string
	Body           *string
	ContentType    string
	MessageType    string
	TemplateName   string
	TemplateParams []string
	HeaderParams   []string
	// ReplyTo is the internal id of the message being answered or reacted to.
	ReplyTo *uuid.UUID
	// ReplyToExternalID is used when only the channel id of the target is known.
	ReplyToExternalID string
	ProfileName       string
	Label             string
	Status            string
	Reference         *domain.EntityRef
}

// Create stores a message after applying the reply, label, reaction and
// attribution rules. Incoming messages announce themselves on the bus.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Message, error) {
	m, err := s.prepare(ctx, in)
	if err != nil {
		return domain.Message{}, err
	}
	return s.store(ctx, m)
}

func (s *Service) prepare(ctx context.Context, in CreateInput) (domain.Message, error) {
	if in.Type != domain.Incoming && in.Type != domain.Outgoing {
		return domain.Message{}, apperr.Validation("type must be Incoming or Outgoing")
	}

	m := domain.Message{
		ExternalID:        strings.TrimSpace(in.ExternalID),
		Type:              in.Type,
		From:              strings.TrimSpace(in.From),
		To:                strings.TrimSpace(in.To),
		Body:              in.Body,
		ContentType:       in.ContentType,
		MessageType:       in.MessageType,
		TemplateName:      in.TemplateName,
		TemplateParams:    in.TemplateParams,
		HeaderParams:      in.HeaderParams,
		ReplyToExternalID: strings.TrimSpace(in.ReplyToExternalID),
		ProfileName:       strings.TrimSpace(in.ProfileName),
		Label:             strings.TrimSpace(in.Label),
		Status:            in.Status,
	}
	if m.ContentType == "" {
		m.ContentType = domain.ContentText
	}
	if m.MessageType == "" {
		m.MessageType = domain.MessageTypeManual
	}
	if m.TemplateName != "" {
		m.MessageType = domain.MessageTypeTemplate
	}

	var target *domain.Message
	if in.ReplyTo != nil {
		t, err := s.repo.GetByID(ctx, *in.ReplyTo)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Message{}, apperr.NotFound("reply target not found")
		}
		if err != nil {
			return domain.Message{}, apperr.Internal("load reply target", err)
		}
		target = &t
		m.ReplyToExternalID = t.ExternalID
	}
	m.IsReply = m.ReplyToExternalID != ""

	if m.ContentType == domain.ContentReaction && !m.IsReply {
		return domain.Message{}, apperr.Validation("a reaction needs the message it reacts to")
	}
	if m.ContentType == domain.ContentReaction && m.Type == domain.Outgoing && target != nil && m.To == "" {
		if target.Type == domain.Incoming {
			m.To = target.From
		} else {
			m.To = target.To
		}
	}

	switch {
	case m.Type == domain.Incoming && m.Label == domain.LabelManual:
		m.Label = ""
	case m.Type == domain.Outgoing && m.Label == "":
		m.Label = domain.LabelManual
	}

	if m.Counterpart() == "" {
		return domain.Message{}, apperr.Validation("message has no counterpart address")
	}

	if in.Reference != nil {
		id := in.Reference.ID
		m.ReferenceType, m.ReferenceID = in.Reference.Type, &id
	} else {
		s.attribute(ctx, &m)
	}
	return m, nil
}

// attribute tags the message with the newest lead or deal sharing its
// counterpart phone. A miss leaves the message unattributed; the thread is
// assembled by phone anyway.
func (s *Service) attribute(ctx context.Context, m *domain.Message) {
	if s.refs == nil {
		return
	}
	digits := m.CounterpartDigits()
	if digits == "" {
		return
	}
	ref, ok, err := s.refs.LatestReferenceForPhone(ctx, digits)
	if err != nil {
		s.log.Warn("message attribution failed", "phone", digits, "error", err)
		return
	}
	if ok {
		id := ref.ID
		m.ReferenceType, m.ReferenceID = ref.Type, &id
	}
}

func (s *Service) store(ctx context.Context, m domain.Message) (domain.Message, error) {
	saved, err := s.repo.Insert(ctx, m)
	if err != nil {
		s.log.DatabaseError("insert message", err)
		return domain.Message{}, apperr.Internal("store message", err)
	}
	if saved.Type == domain.Incoming {
		s.bus.Publish(ctx, events.MessageReceived{
			BaseEvent:   events.NewBaseEvent(),
			MessageID:   saved.ID,
			ExternalID:  saved.ExternalID,
			From:        saved.From,
			ProfileName: saved.ProfileName,
			ContentType: saved.ContentType,
		})
	}
	return saved, nil
}

// InboundMessage is a message reported by the channel webhook.
type InboundMessage struct {
	ExternalID        string
	From              string
	To                string
	Body              string
	ContentType       string
	ReplyToExternalID string
	ProfileName       string
}

// Ingest stores an inbound message. A message whose external id was already
// stored is returned as is with duplicate=true.
func (s *Service) Ingest(ctx context.Context, in InboundMessage) (msg domain.Message, duplicate bool, err error) {
	if id := strings.TrimSpace(in.ExternalID); id != "" {
		existing, err := s.repo.FindByExternalID(ctx, id)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Message{}, false, apperr.Internal("lookup inbound message", err)
		}
	}

	var body *string
	if in.Body != "" {
		b := in.Body
		body = &b
	}
	saved, err := s.Create(ctx, CreateInput{
		ExternalID:        in.ExternalID,
		Type:              domain.Incoming,
		From:              in.From,
		To:                in.To,
		Body:              body,
		ContentType:       in.ContentType,
		ReplyToExternalID: in.ReplyToExternalID,
		ProfileName:       in.ProfileName,
	})
	return saved, false, err
}

// SendTextInput is a free-text outbound message.
type SendTextInput struct {
	To        string
	Text      string
	ReplyTo   *uuid.UUID
	Label     string
	Reference *domain.EntityRef
}

// SendText delivers a text message and stores it as Outgoing.
func (s *Service) SendText(ctx context.Context, in SendTextInput) (domain.Message, error) {
	if strings.TrimSpace(in.Text) == "" {
		return domain.Message{}, apperr.Validation("message text is required")
	}
	text := in.Text
	return s.send(ctx, CreateInput{
		Type:      domain.Outgoing,
		To:        in.To,
		Body:      &text,
		ReplyTo:   in.ReplyTo,
		Label:     in.Label,
		Reference: in.Reference,
	}, text, false)
}

// SendTemplateInput is an outbound template message.
type SendTemplateInput struct {
	To           string
	TemplateName string
	Params       []string
	HeaderParams []string
	Reference    *domain.EntityRef
}

// SendTemplate renders a stored template and delivers the result. The stored
// message keeps the template name and parameters, not the rendered text.
func (s *Service) SendTemplate(ctx context.Context, in SendTemplateInput) (domain.Message, error) {
	name := strings.TrimSpace(in.TemplateName)
	if name == "" {
		return domain.Message{}, apperr.Validation("template name is required")
	}
	templates, err := s.repo.GetTemplates(ctx, []string{name})
	if err != nil {
		return domain.Message{}, apperr.Internal("load template", err)
	}
	tpl, ok := templates[name]
	if !ok {
		return domain.Message{}, apperr.NotFound("template not found")
	}
	rendered := tpl.Render(in.Params, in.HeaderParams)

	return s.send(ctx, CreateInput{
		Type:           domain.Outgoing,
		To:             in.To,
		ContentType:    domain.ContentText,
		TemplateName:   name,
		TemplateParams: in.Params,
		HeaderParams:   in.HeaderParams,
		Reference:      in.Reference,
	}, rendered.Text(), false)
}

// React sends an emoji reaction to a stored message.
func (s *Service) React(ctx context.Context, messageID uuid.UUID, emoji string) (domain.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return domain.Message{}, apperr.Validation("reaction is required")
	}
	id := messageID
	return s.send(ctx, CreateInput{
		Type:        domain.Outgoing,
		Body:        &emoji,
		ContentType: domain.ContentReaction,
		ReplyTo:     &id,
	}, emoji, true)
}

// SendNotification delivers a system message to a phone and stores it
// attributed to ref.
func (s *Service) SendNotification(ctx context.Context, to, body, label string, ref domain.EntityRef) (domain.Message, error) {
	text := body
	return s.send(ctx, CreateInput{
		Type:      domain.Outgoing,
		To:        to,
		Body:      &text,
		Label:     label,
		Reference: &ref,
	}, text, false)
}

func (s *Service) send(ctx context.Context, in CreateInput, text string, reaction bool) (domain.Message, error) {
	m, err := s.prepare(ctx, in)
	if err != nil {
		return domain.Message{}, err
	}
	if s.channel == nil {
		return domain.Message{}, apperr.Internal("no messaging channel configured", nil)
	}

	externalID, err := s.channel.Send(ctx, domain.OutboundMessage{
		To:                phone.Digits(m.To),
		Text:              text,
		ReplyToExternalID: m.ReplyToExternalID,
		Reaction:          reaction,
	})
	if err != nil {
		s.log.Warn("message delivery failed", "to", m.To, "error", err)
		return domain.Message{}, apperr.Internal("deliver message", err)
	}
	if externalID == "" {
		externalID = ulid.Make().String()
	}
	m.ExternalID = externalID
	m.Status = "sent"
	return s.store(ctx, m)
}

// LatestIncomingPhone returns the sender of the newest inbound message
// attributed to the given lead or deal.
func (s *Service) LatestIncomingPhone(ctx context.Context, referenceType string, referenceID uuid.UUID) (string, error) {
	return s.repo.LatestIncomingPhone(ctx, domain.EntityRef{Type: referenceType, ID: referenceID})
}
