// Package service resolves conversational phone numbers to contacts and
// applies identity-sensitive updates behind a verified phone.
package service

import (
	"context"
	"errors"
	"strings"

	"crm_workflow_backend/internal/identity/domain"
	"crm_workflow_backend/internal/identity/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	msgPhoneRequired    = "phone number is required"
	msgNameRequired     = "first name and last name are required"
	msgOrgNameRequired  = "organization name is required"
	msgPhoneNotOwned    = "phone number does not belong to this contact"
	msgPhoneNotVerified = "phone number has not been verified"
	msgContactNotFound  = "contact not found"
)

// Store is the persistence the resolver needs.
type Store interface {
	FindContactByDigits(ctx context.Context, digits string) (domain.Contact, error)
	FindContactByEmail(ctx context.Context, email string) (domain.Contact, error)
	GetContact(ctx context.Context, id uuid.UUID) (domain.Contact, error)
	CreateContact(ctx context.Context, params repository.CreateContactParams) (domain.Contact, error)
	NormalizeContactPhones(ctx context.Context, contactID uuid.UUID, mobile string, rowID uuid.UUID) error
	UpdateContactProfile(ctx context.Context, params repository.UpdateProfileParams) error
	FindOrganizationByName(ctx context.Context, name string) (domain.Organization, error)
	EnsureOrganization(ctx context.Context, params repository.OrganizationParams) (domain.Organization, bool, error)
	LinkContactOrganization(ctx context.Context, contactID, organizationID uuid.UUID) error
}

// ConversationUpdate is profile data collected on the messaging channel.
type ConversationUpdate struct {
	FirstName           string
	LastName            string
	Email               string
	Website             string
	CompanyName         string
	Organization        string
	ConfirmOrganization bool
}

// ConversationResult reports what an update did. NeedsConfirmation is set
// when Organization matched an existing organization that the caller has not
// confirmed yet; the profile fields are saved but no link is written.
type ConversationResult struct {
	Contact             domain.Contact
	Created             bool
	LinkedOrganization  *domain.Organization
	NeedsConfirmation   bool
	OrganizationMatch   string
	OrganizationCreated bool
}

// NewContactInput is used when another workflow (conversion) creates a
// contact from its own data.
type NewContactInput struct {
	FirstName   string
	LastName    string
	Email       string
	MobileNo    string
	Phone       string
	CompanyName string
}

type Service struct {
	store Store
	log   *logger.Logger
}

func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log.WithComponent("identity")}
}

// ResolveOrCreateContact finds the contact owning digits, rewriting its
// phone fields to the pretty form, or creates one named after the number.
func (s *Service) ResolveOrCreateContact(ctx context.Context, raw string) (domain.Contact, bool, error) {
	digits := phone.Digits(raw)
	if digits == "" {
		return domain.Contact{}, false, apperr.Validation(msgPhoneRequired)
	}

	contact, err := s.store.FindContactByDigits(ctx, digits)
	if err == nil {
		if mobile, rowID, changed := contact.PrettyPhoneUpdate(digits); changed {
			if err := s.store.NormalizeContactPhones(ctx, contact.ID, mobile, rowID); err != nil {
				return domain.Contact{}, false, apperr.Internal("normalize contact phone", err)
			}
			contact.MobileNo = mobile
			for i := range contact.Phones {
				if contact.Phones[i].ID == rowID {
					contact.Phones[i].Phone = mobile
				}
			}
			s.log.Info("normalized contact phone", "contactId", contact.ID)
		}
		return contact, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Contact{}, false, apperr.Internal("find contact", err)
	}

	display := phone.Display(digits)
	created, err := s.store.CreateContact(ctx, repository.CreateContactParams{
		FirstName: display,
		MobileNo:  display,
		Phones:    []domain.ContactPhone{{Phone: display, IsPrimaryMobileNo: true}},
	})
	if err != nil {
		return domain.Contact{}, false, apperr.Internal("create contact", err)
	}
	s.log.Info("created contact", "contactId", created.ID, "phoneLen", len(digits))
	return created, true, nil
}

// VerifyOwnership checks that digits belongs to contact and returns the
// proof required by conversational mutations.
func (s *Service) VerifyOwnership(contact domain.Contact, digits string) (domain.VerifiedPhone, bool) {
	return domain.Verify(contact, digits)
}

// VerifyConversationPhone resolves the contact behind a conversation phone
// and verifies ownership. A mismatch is an authorization failure.
func (s *Service) VerifyConversationPhone(ctx context.Context, raw string) (domain.VerifiedPhone, domain.Contact, bool, error) {
	contact, created, err := s.ResolveOrCreateContact(ctx, raw)
	if err != nil {
		return domain.VerifiedPhone{}, domain.Contact{}, false, err
	}
	verified, ok := s.VerifyOwnership(contact, raw)
	if !ok {
		s.log.Warn("conversation phone ownership mismatch", "contactId", contact.ID)
		return domain.VerifiedPhone{}, domain.Contact{}, false, apperr.Forbidden(msgPhoneNotOwned)
	}
	return verified, contact, created, nil
}

// UpdateContactFromConversation applies profile data sent over the
// messaging channel to the contact that owns the verified phone.
func (s *Service) UpdateContactFromConversation(ctx context.Context, verified domain.VerifiedPhone, update ConversationUpdate) (ConversationResult, error) {
	if verified.IsZero() {
		return ConversationResult{}, apperr.Forbidden(msgPhoneNotVerified)
	}

	firstName := strings.TrimSpace(update.FirstName)
	lastName := strings.TrimSpace(update.LastName)
	if firstName == "" || lastName == "" {
		return ConversationResult{}, apperr.Validation(msgNameRequired)
	}

	contact, err := s.store.GetContact(ctx, verified.ContactID())
	if errors.Is(err, repository.ErrNotFound) {
		return ConversationResult{}, apperr.NotFound(msgContactNotFound)
	}
	if err != nil {
		return ConversationResult{}, apperr.Internal("load contact", err)
	}
	// The contact may have lost the number since verification.
	if !contact.OwnsPhone(verified.Digits()) {
		return ConversationResult{}, apperr.Forbidden(msgPhoneNotOwned)
	}

	params := repository.UpdateProfileParams{
		ContactID:   contact.ID,
		FirstName:   firstName,
		LastName:    lastName,
		Email:       strings.ToLower(strings.TrimSpace(update.Email)),
		Website:     strings.TrimSpace(update.Website),
		CompanyName: strings.TrimSpace(update.CompanyName),
	}
	if err := s.store.UpdateContactProfile(ctx, params); err != nil {
		return ConversationResult{}, apperr.Internal("update contact", err)
	}

	contact, err = s.store.GetContact(ctx, contact.ID)
	if err != nil {
		return ConversationResult{}, apperr.Internal("reload contact", err)
	}
	result := ConversationResult{Contact: contact}

	orgName := strings.TrimSpace(update.Organization)
	if orgName == "" {
		return result, nil
	}

	org, err := s.store.FindOrganizationByName(ctx, orgName)
	if errors.Is(err, repository.ErrNotFound) {
		// Organizations are never created from unverified conversational input.
		return result, nil
	}
	if err != nil {
		return ConversationResult{}, apperr.Internal("find organization", err)
	}

	if !update.ConfirmOrganization {
		result.NeedsConfirmation = true
		result.OrganizationMatch = org.Name
		return result, nil
	}

	if err := s.store.LinkContactOrganization(ctx, contact.ID, org.ID); err != nil {
		return ConversationResult{}, apperr.Internal("link organization", err)
	}
	s.log.Info("linked contact to organization", "contactId", contact.ID, "organizationId", org.ID)
	result.LinkedOrganization = &org
	return result, nil
}

// EnsureOrganization finds an organization by exact name or creates it.
func (s *Service) EnsureOrganization(ctx context.Context, params repository.OrganizationParams) (domain.Organization, error) {
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return domain.Organization{}, apperr.Validation(msgOrgNameRequired)
	}
	org, created, err := s.store.EnsureOrganization(ctx, params)
	if err != nil {
		return domain.Organization{}, apperr.Internal("ensure organization", err)
	}
	if created {
		s.log.Info("created organization", "organizationId", org.ID, "name", org.Name)
	}
	return org, nil
}

// LinkContactToOrganization links the contact owning digits, or failing
// that the one owning email, to the organization. Nothing matching is not
// an error.
func (s *Service) LinkContactToOrganization(ctx context.Context, digits, email string, organizationID uuid.UUID) (*domain.Contact, error) {
	contact, err := s.ContactByEmailOrPhone(ctx, "", digits)
	if errors.Is(err, repository.ErrNotFound) && strings.TrimSpace(email) != "" {
		contact, err = s.ContactByEmailOrPhone(ctx, email)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("find contact", err)
	}
	if err := s.store.LinkContactOrganization(ctx, contact.ID, organizationID); err != nil {
		return nil, apperr.Internal("link organization", err)
	}
	return &contact, nil
}

// ContactByEmailOrPhone returns the first contact matching any of the given
// phones, then email. It returns repository.ErrNotFound when nothing matches.
func (s *Service) ContactByEmailOrPhone(ctx context.Context, email string, phones ...string) (domain.Contact, error) {
	for _, raw := range phones {
		digits := phone.Digits(raw)
		if digits == "" {
			continue
		}
		contact, err := s.store.FindContactByDigits(ctx, digits)
		if err == nil {
			return contact, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Contact{}, err
		}
	}
	if email = strings.TrimSpace(email); email != "" {
		return s.store.FindContactByEmail(ctx, email)
	}
	return domain.Contact{}, repository.ErrNotFound
}

// GetContact loads a contact by id.
func (s *Service) GetContact(ctx context.Context, id uuid.UUID) (domain.Contact, error) {
	contact, err := s.store.GetContact(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Contact{}, apperr.NotFound(msgContactNotFound)
	}
	if err != nil {
		return domain.Contact{}, apperr.Internal("load contact", err)
	}
	return contact, nil
}

// CreateContact creates a contact from structured data, with email, phone
// and mobile rows flagged primary.
func (s *Service) CreateContact(ctx context.Context, in NewContactInput) (domain.Contact, error) {
	params := repository.CreateContactParams{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		MobileNo:    phone.Display(in.MobileNo),
		Phone:       phone.Display(in.Phone),
		CompanyName: strings.TrimSpace(in.CompanyName),
	}
	if params.Email != "" {
		params.Emails = append(params.Emails, domain.ContactEmail{Email: params.Email, IsPrimary: true})
	}
	if params.Phone != "" && !phone.Same(params.Phone, params.MobileNo) {
		params.Phones = append(params.Phones, domain.ContactPhone{Phone: params.Phone, IsPrimaryPhone: true})
	}
	if params.MobileNo != "" {
		params.Phones = append(params.Phones, domain.ContactPhone{
			Phone:             params.MobileNo,
			IsPrimaryMobileNo: true,
			IsPrimaryPhone:    params.Phone == "" || phone.Same(params.Phone, params.MobileNo),
		})
	}

	contact, err := s.store.CreateContact(ctx, params)
	if err != nil {
		return domain.Contact{}, apperr.Internal("create contact", err)
	}
	s.log.Info("created contact", "contactId", contact.ID)
	return contact, nil
}

// EnsureContactFromMessage is the ingestion hook for inbound messages.
func (s *Service) EnsureContactFromMessage(ctx context.Context, direction, from string) error {
	if !strings.EqualFold(direction, "incoming") {
		return nil
	}
	if phone.Digits(from) == "" {
		s.log.Debug("inbound message without phone")
		return nil
	}
	_, _, err := s.ResolveOrCreateContact(ctx, from)
	return err
}
