package handler

import (
	"net/http"

	"crm_workflow_backend/internal/messages/domain"
	"crm_workflow_backend/internal/messages/service"
	"crm_workflow_backend/internal/messages/thread"
	"crm_workflow_backend/internal/messages/transport"
	"crm_workflow_backend/platform/httpkit"
	"crm_workflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc    *service.Service
	thread *thread.Reconciler
	val    *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, reconciler *thread.Reconciler, val *validator.Validator) *Handler {
	return &Handler{svc: svc, thread: reconciler, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.Send)
	rg.GET("/threads/:type/:id", h.Thread)
}

func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/whatsapp", h.Webhook)
}

// Send delivers a text, template or reaction message.
// POST /api/v1/messages
func (h *Handler) Send(c *gin.Context) {
	var req transport.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		msg domain.Message
		err error
	)
	switch {
	case req.Reaction != "":
		if req.ReplyTo == nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, "replyTo is required for reactions")
			return
		}
		msg, err = h.svc.React(ctx, *req.ReplyTo, req.Reaction)
	case req.TemplateName != "":
		msg, err = h.svc.SendTemplate(ctx, service.SendTemplateInput{
			To:           req.To,
			TemplateName: req.TemplateName,
			Params:       req.Params,
			HeaderParams: req.HeaderParams,
			Reference:    req.Reference(),
		})
	default:
		msg, err = h.svc.SendText(ctx, service.SendTextInput{
			To:        req.To,
			Text:      req.Text,
			ReplyTo:   req.ReplyTo,
			Reference: req.Reference(),
		})
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToMessageResponse(msg))
}

// Thread returns the reconciled conversation of a lead or deal.
// GET /api/v1/threads/:type/:id
func (h *Handler) Thread(c *gin.Context) {
	refType := c.Param("type")
	if refType != domain.RefLead && refType != domain.RefDeal {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "type must be lead or deal")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "invalid id")
		return
	}

	msgs, err := h.thread.Thread(c.Request.Context(), domain.EntityRef{Type: refType, ID: id})
	if httpkit.HandleError(c, err) {
		return
	}
	if msgs == nil {
		msgs = []thread.Message{}
	}

	httpkit.OK(c, msgs)
}

// Webhook stores an inbound message reported by the gateway. Events that
// carry neither text nor a reaction are acknowledged and ignored.
// POST /api/v1/webhooks/whatsapp
func (h *Handler) Webhook(c *gin.Context) {
	var req transport.GatewayWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	in := service.InboundMessage{
		ExternalID:  req.Message.ID,
		From:        req.Sender(),
		ProfileName: req.PushName,
	}
	switch {
	case req.IsReaction():
		in.Body = req.Reaction.Message
		in.ContentType = domain.ContentReaction
		in.ReplyToExternalID = req.Reaction.ID
	case req.Message.Text != "":
		in.Body = req.Message.Text
		in.ContentType = domain.ContentText
		in.ReplyToExternalID = req.Message.RepliedID
	default:
		c.Status(http.StatusNoContent)
		return
	}
	if in.From == "" {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, "sender is required")
		return
	}

	msg, duplicate, err := h.svc.Ingest(c.Request.Context(), in)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.WebhookResponse{ID: msg.ID, Duplicate: duplicate})
}
