// Package thread rebuilds the conversation of a lead or deal from stored
// messages, joining them by customer phone.
package thread

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/internal/messages/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	youName     = "You"
	unknownName = "Unknown"
)

// Repository is the message storage the reconciler reads.
type Repository interface {
	ListByCounterparts(ctx context.Context, digits []string) ([]domain.Message, error)
	FindByExternalID(ctx context.Context, externalID string) (domain.Message, error)
	GetTemplates(ctx context.Context, names []string) (map[string]domain.Template, error)
}

// Message is one entry of a reconciled thread. Message and Template are
// never null in JSON.
type Message struct {
	ID               uuid.UUID  `json:"id"`
	ExternalID       string     `json:"messageId"`
	Type             string     `json:"type"`
	From             string     `json:"from"`
	To               string     `json:"to"`
	FromName         string     `json:"fromName"`
	Message          string     `json:"message"`
	ContentType      string     `json:"contentType"`
	MessageType      string     `json:"messageType"`
	TemplateName     string     `json:"templateName,omitempty"`
	Template         string     `json:"template"`
	Header           string     `json:"header"`
	Footer           string     `json:"footer"`
	Reaction         string     `json:"reaction,omitempty"`
	IsReply          bool       `json:"isReply"`
	ReplyToMessageID string     `json:"replyToMessageId,omitempty"`
	ReplyMessage     string     `json:"replyMessage,omitempty"`
	ReplyHeader      string     `json:"replyHeader,omitempty"`
	ReplyFooter      string     `json:"replyFooter,omitempty"`
	ReplyTo          *uuid.UUID `json:"replyTo,omitempty"`
	ReplyToType      string     `json:"replyToType,omitempty"`
	ReplyToFrom      string     `json:"replyToFrom,omitempty"`
	Label            string     `json:"label,omitempty"`
	Status           string     `json:"status,omitempty"`
	ReferenceType    string     `json:"referenceType,omitempty"`
	ReferenceID      *uuid.UUID `json:"referenceId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	templateParams   []string
	headerParams     []string
}

type Reconciler struct {
	repo          Repository
	dir           Directory
	replyFallback bool
	log           *logger.Logger
}

// New creates a reconciler. With replyFallback set, reply targets missing
// from the thread are looked up in storage by external id.
func New(repo Repository, dir Directory, replyFallback bool, log *logger.Logger) *Reconciler {
	return &Reconciler{repo: repo, dir: dir, replyFallback: replyFallback, log: log}
}

// Thread returns the conversation with the customer behind ref, oldest
// first, with templates, reactions and replies resolved.
func (r *Reconciler) Thread(ctx context.Context, ref domain.EntityRef) ([]Message, error) {
	phones, err := r.PhoneNumbersFor(ctx, ref)
	if err != nil {
		return nil, err
	}
	stored, err := r.MessagesForPhones(ctx, phones)
	if err != nil {
		return nil, err
	}

	names := newNameResolver(r.dir, r.log)
	out := make([]Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, toThreadMessage(ctx, m, names))
	}

	if err := r.hydrateTemplates(ctx, out); err != nil {
		return nil, err
	}
	out = r.hydrateReactions(out)
	r.hydrateReplies(ctx, out, names)
	return out, nil
}

// PhoneNumbersFor lists the canonical phones of the customer behind ref:
// a lead's own phones, or a deal's mobile plus those of its lead and every
// linked contact.
func (r *Reconciler) PhoneNumbersFor(ctx context.Context, ref domain.EntityRef) ([]string, error) {
	set := newPhoneSet()
	switch ref.Type {
	case domain.RefLead:
		lead, err := r.dir.Lead(ctx, ref.ID)
		if err != nil {
			return nil, r.lookupError("lead", err)
		}
		set.add(lead.MobileNo, lead.Phone)
	case domain.RefDeal:
		deal, err := r.dir.Deal(ctx, ref.ID)
		if err != nil {
			return nil, r.lookupError("deal", err)
		}
		set.add(deal.MobileNo)
		if err := r.collectDealPhones(ctx, deal, set); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Validation("reference type must be lead or deal")
	}
	return set.values(), nil
}

func (r *Reconciler) collectDealPhones(ctx context.Context, deal DealView, set *phoneSet) error {
	g, gctx := errgroup.WithContext(ctx)
	if deal.LeadID != nil {
		leadID := *deal.LeadID
		g.Go(func() error {
			lead, err := r.dir.Lead(gctx, leadID)
			if errors.Is(err, ErrEntityNotFound) {
				r.log.DataInconsistency("deal", deal.ID.String(), "linked lead missing")
				return nil
			}
			if err != nil {
				return err
			}
			set.add(lead.MobileNo, lead.Phone)
			return nil
		})
	}
	for _, id := range deal.ContactIDs {
		contactID := id
		g.Go(func() error {
			c, err := r.dir.Contact(gctx, contactID)
			if errors.Is(err, ErrEntityNotFound) {
				r.log.DataInconsistency("deal", deal.ID.String(), "linked contact missing")
				return nil
			}
			if err != nil {
				return err
			}
			set.add(c.MobileNo, c.Phone)
			set.add(c.Phones...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apperr.Internal("load thread participants", err)
	}
	return nil
}

func (r *Reconciler) lookupError(entity string, err error) error {
	if errors.Is(err, ErrEntityNotFound) {
		return apperr.NotFound(entity + " not found")
	}
	return apperr.Internal("load "+entity, err)
}

// MessagesForPhones returns every stored message exchanged with any of the
// phones, oldest first.
func (r *Reconciler) MessagesForPhones(ctx context.Context, phones []string) ([]domain.Message, error) {
	digits := make([]string, 0, len(phones))
	for _, p := range phones {
		if d := phone.Digits(p); d != "" {
			digits = append(digits, d)
		}
	}
	if len(digits) == 0 {
		return nil, nil
	}
	msgs, err := r.repo.ListByCounterparts(ctx, digits)
	if err != nil {
		r.log.DatabaseError("list thread messages", err)
		return nil, apperr.Internal("list messages", err)
	}
	return msgs, nil
}

func toThreadMessage(ctx context.Context, m domain.Message, names *nameResolver) Message {
	tm := Message{
		ID:               m.ID,
		ExternalID:       m.ExternalID,
		Type:             string(m.Type),
		From:             m.From,
		To:               m.To,
		Message:          m.Text(),
		ContentType:      m.ContentType,
		MessageType:      m.MessageType,
		TemplateName:     m.TemplateName,
		IsReply:          m.IsReply,
		ReplyToMessageID: m.ReplyToExternalID,
		Label:            m.Label,
		Status:           m.Status,
		ReferenceType:    m.ReferenceType,
		ReferenceID:      m.ReferenceID,
		CreatedAt:        m.CreatedAt,
		templateParams:   m.TemplateParams,
		headerParams:     m.HeaderParams,
	}
	tm.FromName = names.displayName(ctx, m)
	return tm
}

// hydrateTemplates renders every template message from its stored
// parameters.
func (r *Reconciler) hydrateTemplates(ctx context.Context, msgs []Message) error {
	var names []string
	seen := map[string]bool{}
	for _, m := range msgs {
		if m.TemplateName != "" && !seen[m.TemplateName] {
			seen[m.TemplateName] = true
			names = append(names, m.TemplateName)
		}
	}
	if len(names) == 0 {
		return nil
	}
	templates, err := r.repo.GetTemplates(ctx, names)
	if err != nil {
		return apperr.Internal("load templates", err)
	}
	for i := range msgs {
		m := &msgs[i]
		if m.TemplateName == "" {
			continue
		}
		tpl, ok := templates[m.TemplateName]
		if !ok {
			r.log.DataInconsistency("message", m.ID.String(), "template "+m.TemplateName+" missing")
			continue
		}
		rendered := tpl.Render(m.templateParams, m.headerParams)
		m.Template, m.Header, m.Footer = rendered.Body, rendered.Header, rendered.Footer
	}
	return nil
}

// hydrateReactions copies each reaction onto the message it reacts to and
// drops the reaction entries.
func (r *Reconciler) hydrateReactions(msgs []Message) []Message {
	byExternal := indexByExternalID(msgs)
	for _, m := range msgs {
		if m.ContentType != domain.ContentReaction {
			continue
		}
		if m.ReplyToMessageID == "" {
			r.log.DataInconsistency("message", m.ID.String(), "reaction without target")
			continue
		}
		if idx, ok := byExternal[m.ReplyToMessageID]; ok {
			msgs[idx].Reaction = m.Message
		} else {
			r.log.DataInconsistency("message", m.ID.String(), "reaction target "+m.ReplyToMessageID+" not in thread")
		}
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ContentType != domain.ContentReaction {
			out = append(out, m)
		}
	}
	return out
}

// hydrateReplies attaches a snippet of the answered message to every reply.
func (r *Reconciler) hydrateReplies(ctx context.Context, msgs []Message, names *nameResolver) {
	byExternal := indexByExternalID(msgs)
	for i := range msgs {
		m := &msgs[i]
		if !m.IsReply {
			continue
		}
		if m.ReplyToMessageID == "" {
			r.log.DataInconsistency("message", m.ID.String(), "reply without target id")
			continue
		}
		if idx, ok := byExternal[m.ReplyToMessageID]; ok {
			target := msgs[idx]
			m.ReplyMessage = target.Message
			m.ReplyHeader, m.ReplyFooter = target.Header, target.Footer
			if m.ReplyMessage == "" {
				m.ReplyMessage = target.Template
			}
			id := target.ID
			m.ReplyTo, m.ReplyToType, m.ReplyToFrom = &id, target.Type, target.FromName
			continue
		}
		if r.replyFallback && r.replyFromStorage(ctx, m, names) {
			continue
		}
		r.log.DataInconsistency("message", m.ID.String(), "reply target "+m.ReplyToMessageID+" not found")
	}
}

func (r *Reconciler) replyFromStorage(ctx context.Context, m *Message, names *nameResolver) bool {
	target, err := r.repo.FindByExternalID(ctx, m.ReplyToMessageID)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err != nil {
		r.log.Warn("reply target lookup failed", "messageId", m.ID, "error", err)
		return false
	}
	hydrated := []Message{toThreadMessage(ctx, target, names)}
	if err := r.hydrateTemplates(ctx, hydrated); err != nil {
		r.log.Warn("reply target template failed", "messageId", m.ID, "error", err)
	}
	t := hydrated[0]
	m.ReplyMessage = t.Message
	if m.ReplyMessage == "" {
		m.ReplyMessage = t.Template
	}
	m.ReplyHeader, m.ReplyFooter = t.Header, t.Footer
	id := t.ID
	m.ReplyTo, m.ReplyToType, m.ReplyToFrom = &id, t.Type, t.FromName
	return true
}

func indexByExternalID(msgs []Message) map[string]int {
	idx := make(map[string]int, len(msgs))
	for i, m := range msgs {
		if m.ExternalID == "" {
			continue
		}
		if _, dup := idx[m.ExternalID]; !dup {
			idx[m.ExternalID] = i
		}
	}
	return idx
}

type phoneSet struct {
	mu    sync.Mutex
	seen  map[string]bool
	order []string
}

func newPhoneSet() *phoneSet {
	return &phoneSet{seen: map[string]bool{}}
}

func (s *phoneSet) add(values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		d := phone.Digits(strings.TrimSpace(v))
		if d == "" || s.seen[d] {
			continue
		}
		s.seen[d] = true
		s.order = append(s.order, d)
	}
}

func (s *phoneSet) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
