package transport

import (
	"time"

	"crm_workflow_backend/internal/identity/domain"
)

type ResolveContactRequest struct {
	Phone string `json:"phone" validate:"required,phone_digits"`
}

type ConversationContactRequest struct {
	Phone               string `json:"phone" validate:"required,phone_digits"`
	FirstName           string `json:"firstName" validate:"required,max=140"`
	LastName            string `json:"lastName" validate:"required,max=140"`
	Email               string `json:"email" validate:"omitempty,email"`
	Website             string `json:"website" validate:"omitempty,max=255"`
	CompanyName         string `json:"companyName" validate:"omitempty,max=140"`
	Organization        string `json:"organization" validate:"omitempty,max=140"`
	ConfirmOrganization bool   `json:"confirmOrganization"`
}

type ContactPhoneResponse struct {
	Phone             string `json:"phone"`
	IsPrimaryMobileNo bool   `json:"isPrimaryMobileNo"`
	IsPrimaryPhone    bool   `json:"isPrimaryPhone"`
}

type ContactEmailResponse struct {
	Email     string `json:"email"`
	IsPrimary bool   `json:"isPrimary"`
}

type ContactResponse struct {
	ID          string                 `json:"id"`
	FirstName   string                 `json:"firstName"`
	LastName    string                 `json:"lastName"`
	Email       string                 `json:"email,omitempty"`
	MobileNo    string                 `json:"mobileNo"`
	Phone       string                 `json:"phone,omitempty"`
	CompanyName string                 `json:"companyName,omitempty"`
	Website     string                 `json:"website,omitempty"`
	Phones      []ContactPhoneResponse `json:"phones"`
	Emails      []ContactEmailResponse `json:"emails"`
	CreatedAt   time.Time              `json:"createdAt"`
}

type ResolveContactResponse struct {
	Contact ContactResponse `json:"contact"`
	Created bool            `json:"created"`
}

type ConversationContactResponse struct {
	Contact           ContactResponse `json:"contact"`
	Created           bool            `json:"created"`
	Organization      string          `json:"organization,omitempty"`
	NeedsConfirmation bool            `json:"needsConfirmation"`
	OrganizationMatch string          `json:"organizationMatch,omitempty"`
}

func ToContactResponse(c domain.Contact) ContactResponse {
	resp := ContactResponse{
		ID:          c.ID.String(),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		MobileNo:    c.MobileNo,
		Phone:       c.Phone,
		CompanyName: c.CompanyName,
		Website:     c.Website,
		Phones:      make([]ContactPhoneResponse, 0, len(c.Phones)),
		Emails:      make([]ContactEmailResponse, 0, len(c.Emails)),
		CreatedAt:   c.CreatedAt,
	}
	for _, p := range c.Phones {
		resp.Phones = append(resp.Phones, ContactPhoneResponse{Phone: p.Phone, IsPrimaryMobileNo: p.IsPrimaryMobileNo, IsPrimaryPhone: p.IsPrimaryPhone})
	}
	for _, e := range c.Emails {
		resp.Emails = append(resp.Emails, ContactEmailResponse{Email: e.Email, IsPrimary: e.IsPrimary})
	}
	return resp
}
