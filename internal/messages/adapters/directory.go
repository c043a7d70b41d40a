// Package adapters connects the messages context to leads and identity.
package adapters

import (
	"context"
	"errors"
	"fmt"

	identitysvc "crm_workflow_backend/internal/identity/service"
	"crm_workflow_backend/internal/leads"
	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/internal/messages/thread"
	"crm_workflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// ThreadDirectory implements thread.Directory over the leads reader and the
// identity service.
type ThreadDirectory struct {
	leads    *leads.Reader
	identity *identitysvc.Service
}

func NewThreadDirectory(reader *leads.Reader, identity *identitysvc.Service) *ThreadDirectory {
	return &ThreadDirectory{leads: reader, identity: identity}
}

func (d *ThreadDirectory) Lead(ctx context.Context, id uuid.UUID) (thread.LeadView, error) {
	lead, err := d.leads.GetLead(ctx, id)
	if errors.Is(err, leads.ErrNotFound) {
		return thread.LeadView{}, thread.ErrEntityNotFound
	}
	if err != nil {
		return thread.LeadView{}, fmt.Errorf("get lead: %w", err)
	}
	return thread.LeadView{
		ID:        lead.ID,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		MobileNo:  lead.MobileNo,
		Phone:     lead.Phone,
	}, nil
}

func (d *ThreadDirectory) Deal(ctx context.Context, id uuid.UUID) (thread.DealView, error) {
	deal, err := d.leads.GetDeal(ctx, id)
	if errors.Is(err, leads.ErrNotFound) {
		return thread.DealView{}, thread.ErrEntityNotFound
	}
	if err != nil {
		return thread.DealView{}, fmt.Errorf("get deal: %w", err)
	}
	contacts, err := d.leads.DealContactIDs(ctx, id)
	if err != nil {
		return thread.DealView{}, fmt.Errorf("deal contacts: %w", err)
	}
	primary, err := d.leads.PrimaryDealContact(ctx, id)
	if err != nil {
		return thread.DealView{}, fmt.Errorf("primary deal contact: %w", err)
	}

	view := thread.DealView{
		ID:               deal.ID,
		MobileNo:         deal.MobileNo,
		LeadID:           deal.LeadID,
		PrimaryContactID: primary,
		ContactIDs:       contacts,
	}
	if deal.LeadID != nil {
		lead, err := d.leads.GetLead(ctx, *deal.LeadID)
		if err == nil {
			view.LeadName = lead.LeadName()
		} else if !errors.Is(err, leads.ErrNotFound) {
			return thread.DealView{}, fmt.Errorf("get deal lead: %w", err)
		}
	}
	return view, nil
}

func (d *ThreadDirectory) Contact(ctx context.Context, id uuid.UUID) (thread.ContactView, error) {
	contact, err := d.identity.GetContact(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return thread.ContactView{}, thread.ErrEntityNotFound
	}
	if err != nil {
		return thread.ContactView{}, err
	}
	phones := make([]string, 0, len(contact.Phones))
	for _, p := range contact.Phones {
		phones = append(phones, p.Phone)
	}
	return thread.ContactView{
		ID:       contact.ID,
		FullName: contact.FullName(),
		MobileNo: contact.MobileNo,
		Phone:    contact.Phone,
		Phones:   phones,
	}, nil
}

// ReferenceDirectory attributes messages to the newest deal, else the
// newest lead, whose mobile matches the phone.
type ReferenceDirectory struct {
	leads *leads.Reader
}

func NewReferenceDirectory(reader *leads.Reader) *ReferenceDirectory {
	return &ReferenceDirectory{leads: reader}
}

func (d *ReferenceDirectory) LatestReferenceForPhone(ctx context.Context, digits string) (domain.EntityRef, bool, error) {
	deal, err := d.leads.LatestDealByMobile(ctx, digits)
	if err == nil {
		return domain.EntityRef{Type: domain.RefDeal, ID: deal.ID}, true, nil
	}
	if !errors.Is(err, leads.ErrNotFound) {
		return domain.EntityRef{}, false, err
	}
	lead, err := d.leads.LatestLeadByMobile(ctx, digits)
	if errors.Is(err, leads.ErrNotFound) {
		return domain.EntityRef{}, false, nil
	}
	if err != nil {
		return domain.EntityRef{}, false, err
	}
	return domain.EntityRef{Type: domain.RefLead, ID: lead.ID}, true, nil
}
