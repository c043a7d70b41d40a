package handler

import (
	"net/http"

	"crm_workflow_backend/internal/catalog/service"
	"crm_workflow_backend/internal/catalog/transport"
	"crm_workflow_backend/platform/httpkit"
	"crm_workflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products/search", h.SearchProducts)
}

// SearchProducts filters active products by tag, price or name.
// GET /api/v1/products/search?filter=&type=&limit=
func (h *Handler) SearchProducts(c *gin.Context) {
	var req transport.SearchProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Search(c.Request.Context(), service.SearchParams{
		Value: req.Filter,
		Type:  req.Type,
		Limit: req.Limit,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToSearchProductsResponse(result))
}
