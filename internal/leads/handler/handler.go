package handler

import (
	"net/http"
	"strings"

	"crm_workflow_backend/internal/leads/conversion"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/intake"
	"crm_workflow_backend/internal/leads/management"
	"crm_workflow_backend/internal/leads/transport"
	"crm_workflow_backend/platform/httpkit"
	"crm_workflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	mgmt       *management.Service
	intake     *intake.Service
	conversion *conversion.Service
	val        *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

func New(mgmt *management.Service, intakeSvc *intake.Service, conversionSvc *conversion.Service, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, intake: intakeSvc, conversion: conversionSvc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/intake", h.Intake)
	rg.GET("/leads/:id", h.Get)
	rg.GET("/leads/:id/status-log", h.StatusLog)
	rg.PATCH("/leads/:id/status", h.UpdateStatus)
	rg.GET("/leads/:id/products", h.ListProducts)
	rg.PUT("/leads/:id/products", h.SetProducts)
	rg.POST("/leads/:id/convert", h.Convert)
	rg.GET("/statuses", h.ListStatuses)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/statuses", h.ListStatuses)
	rg.POST("/statuses", h.CreateStatus)
}

// Intake finds or creates a lead from an order request.
// POST /api/v1/leads/intake
func (h *Handler) Intake(c *gin.Context) {
	var req transport.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, existed, err := h.intake.FindOrCreateLead(c.Request.Context(), intake.LeadIntake{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Organization:    req.Organization,
		Email:           req.Email,
		MobileNo:        req.MobileNo,
		Phone:           req.Phone,
		Website:         req.Website,
		Source:          req.Source,
		LeadOwner:       req.LeadOwner,
		DeliveryDate:    req.DeliveryDate.Ptr(),
		DeliveryAddress: req.DeliveryAddress,
		OrderDate:       req.OrderDate.Ptr(),
		OrderDetails:    req.OrderDetails,
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	httpkit.JSON(c, status, transport.IntakeResponse{Lead: transport.ToLeadResponse(lead), Existed: existed})
}

// Get returns a lead.
// GET /api/v1/leads/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	lead, err := h.mgmt.GetLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// StatusLog returns the status history of a lead.
// GET /api/v1/leads/:id/status-log
func (h *Handler) StatusLog(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	entries, err := h.mgmt.StatusHistory(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"entries": transport.ToStatusLogResponse(entries)})
}

// UpdateStatus moves a lead to a new status.
// PATCH /api/v1/leads/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.mgmt.UpdateStatus(c.Request.Context(), management.StatusUpdate{
		LeadID:    id,
		Status:    req.Status,
		ChangedBy: httpkit.ActorName(c),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// ListProducts returns the product lines of a lead.
// GET /api/v1/leads/:id/products
func (h *Handler) ListProducts(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	lines, err := h.mgmt.Products(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProductsResponse(lines, domain.ComputeTotals(lines)))
}

// SetProducts replaces the product lines of a lead.
// PUT /api/v1/leads/:id/products
func (h *Handler) SetProducts(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.SetProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lines := make([]domain.ProductLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, l.ToDomain())
	}
	computed, totals, err := h.mgmt.SetProducts(c.Request.Context(), id, lines)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProductsResponse(computed, totals))
}

// Convert turns the lead into a deal. Calling it again resumes an
// interrupted conversion.
// POST /api/v1/leads/:id/convert
func (h *Handler) Convert(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.ConvertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	d := req.Deal
	result, err := h.conversion.ConvertToDeal(c.Request.Context(), id, conversion.ConvertInput{
		ContactID:      req.ContactID,
		OrganizationID: req.OrganizationID,
		ChangedBy:      httpkit.ActorName(c),
		Overrides: conversion.DealOverrides{
			DealOwner:           d.DealOwner,
			Website:             d.Website,
			Territory:           d.Territory,
			Industry:            d.Industry,
			AnnualRevenue:       d.AnnualRevenue,
			Source:              d.Source,
			ExpectedClosureDate: d.ExpectedClosureDate.Ptr(),
			DeliveryDate:        d.DeliveryDate.Ptr(),
			DeliveryAddress:     d.DeliveryAddress,
			OrderDate:           d.OrderDate.Ptr(),
			OrderNotes:          d.OrderNotes,
		},
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListStatuses returns the status vocabulary of leads or deals.
// GET /api/v1/statuses?entity=lead
func (h *Handler) ListStatuses(c *gin.Context) {
	entity := domain.EntityKind(strings.ToLower(c.DefaultQuery("entity", string(domain.EntityLead))))
	if entity != domain.EntityLead && entity != domain.EntityDeal {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, "entity must be lead or deal")
		return
	}
	statuses, err := h.mgmt.Statuses(c.Request.Context(), entity)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"statuses": transport.ToStatusResponses(statuses)})
}

// CreateStatus adds a status to a vocabulary.
// POST /api/v1/admin/statuses
func (h *Handler) CreateStatus(c *gin.Context) {
	var req transport.CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	status, err := h.mgmt.CreateStatus(c.Request.Context(), domain.EntityKind(req.Entity), req.Name, req.Position, req.Color)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToStatusResponses([]domain.Status{status})[0])
}

func leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
