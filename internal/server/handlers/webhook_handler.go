package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/models"
	service "github.com/mamadbah2/broiler/internal/service/whatsapp"
	client "github.com/mamadbah2/broiler/pkg/clients/whatsapp"
)

const whatsAppObject = "whatsapp_business_account"

// WebhookHandler carries worker commands in from the WhatsApp Cloud API and
// lets operators push messages out.
type WebhookHandler struct {
	svc    service.MessagingService
	logger *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(svc service.MessagingService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, logger: logger}
}

// Verify answers Meta's subscription challenge with hub.challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	challenge, err := h.svc.VerifyWebhookToken(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if err != nil {
		fail(c, apperror.New("WEBHOOK_VERIFICATION_FAILED", err.Error(), http.StatusForbidden))
		return
	}
	c.String(http.StatusOK, challenge)
}

// Receive runs the commands of a webhook callback. Command failures are
// answered to the worker over WhatsApp, so the callback itself is always
// acknowledged; Meta would otherwise redeliver it.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		bindFailed(c, err)
		return
	}
	if payload.Object != "" && payload.Object != whatsAppObject {
		h.logger.Debug("ignoring webhook object", zap.String("object", payload.Object))
		c.Status(http.StatusOK)
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload); err != nil {
		h.logger.Error("webhook left replies undelivered",
			zap.Int("entries", len(payload.Entry)),
			zap.String("request_id", c.GetString("requestId")),
			zap.Error(err))
	}
	c.Status(http.StatusOK)
}

// SendMessage pushes a free-form message to a worker.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	if err := h.svc.SendOutbound(c.Request.Context(), req); err != nil {
		appErr := apperror.New("WHATSAPP_DELIVERY_FAILED", "unable to send message", http.StatusBadGateway).Wrap(err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			appErr = appErr.
				WithDetail("api_status", strconv.Itoa(apiErr.Status)).
				WithDetail("api_code", strconv.Itoa(apiErr.Code))
		}
		fail(c, appErr)
		return
	}

	c.Status(http.StatusAccepted)
}
