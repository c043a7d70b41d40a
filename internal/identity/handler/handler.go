package handler

import (
	"net/http"

	"crm_workflow_backend/internal/identity/service"
	"crm_workflow_backend/internal/identity/transport"
	"crm_workflow_backend/platform/httpkit"
	"crm_workflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/contacts/resolve", h.ResolveContact)
	rg.POST("/conversations/contact", h.UpdateFromConversation)
}

// ResolveContact finds or creates the contact for a phone number.
// POST /api/v1/contacts/resolve
func (h *Handler) ResolveContact(c *gin.Context) {
	var req transport.ResolveContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	contact, created, err := h.svc.ResolveOrCreateContact(c.Request.Context(), req.Phone)
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.ResolveContactResponse{Contact: transport.ToContactResponse(contact), Created: created})
}

// UpdateFromConversation applies profile data gathered in a chat to the
// contact owning the conversation phone.
// POST /api/v1/conversations/contact
func (h *Handler) UpdateFromConversation(c *gin.Context) {
	var req transport.ConversationContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ctx := c.Request.Context()
	verified, _, created, err := h.svc.VerifyConversationPhone(ctx, req.Phone)
	if httpkit.HandleError(c, err) {
		return
	}

	result, err := h.svc.UpdateContactFromConversation(ctx, verified, service.ConversationUpdate{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		Website:             req.Website,
		CompanyName:         req.CompanyName,
		Organization:        req.Organization,
		ConfirmOrganization: req.ConfirmOrganization,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ConversationContactResponse{
		Contact:           transport.ToContactResponse(result.Contact),
		Created:           created,
		NeedsConfirmation: result.NeedsConfirmation,
		OrganizationMatch: result.OrganizationMatch,
	}
	if result.LinkedOrganization != nil {
		resp.Organization = result.LinkedOrganization.Name
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, resp)
}
