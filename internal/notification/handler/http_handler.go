package handler

import (
	"net/http"

	"crm_workflow_backend/internal/notification/settings"
	"crm_workflow_backend/internal/notification/transport"
	"crm_workflow_backend/platform/httpkit"
	"crm_workflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type HTTPHandler struct {
	svc *settings.Service
	val *validator.Validator
}

func NewHTTPHandler(svc *settings.Service, val *validator.Validator) *HTTPHandler {
	return &HTTPHandler{svc: svc, val: val}
}

func (h *HTTPHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/notification-settings", h.List)
	rg.GET("/notification-settings/:slug", h.Get)
	rg.PUT("/notification-settings/:slug", h.Update)
	rg.GET("/payment-settings", h.GetPayment)
	rg.PUT("/payment-settings", h.UpdatePayment)
}

// GET /api/v1/admin/notification-settings
func (h *HTTPHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"settings": transport.ToSettingResponses(items)})
}

// GET /api/v1/admin/notification-settings/:slug
func (h *HTTPHandler) Get(c *gin.Context) {
	setting, err := h.svc.Get(c.Request.Context(), c.Param("slug"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSettingResponse(setting))
}

// Update toggles a status notification or replaces its custom message.
// PUT /api/v1/admin/notification-settings/:slug
func (h *HTTPHandler) Update(c *gin.Context) {
	var req transport.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	setting, err := h.svc.Update(c.Request.Context(), c.Param("slug"), req.Enabled, req.CustomMessage)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSettingResponse(setting))
}

// GET /api/v1/admin/payment-settings
func (h *HTTPHandler) GetPayment(c *gin.Context) {
	text, err := h.svc.PaymentInstructions(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.PaymentSettingsResponse{Instructions: text})
}

// PUT /api/v1/admin/payment-settings
func (h *HTTPHandler) UpdatePayment(c *gin.Context) {
	var req transport.PaymentSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	text, err := h.svc.SetPaymentInstructions(c.Request.Context(), req.Instructions)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.PaymentSettingsResponse{Instructions: text})
}
