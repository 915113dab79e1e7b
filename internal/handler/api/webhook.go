package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"expertbooking/internal/usecase/commands"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "X-Payment-Signature"
	maxWebhookBody  = 1 << 20
)

type WebhookHandler struct {
	webhookCommands commands.WebhookCommands
}

func NewWebhookHandler(webhookCommands commands.WebhookCommands) *WebhookHandler {
	return &WebhookHandler{
		webhookCommands: webhookCommands,
	}
}

// @Summary Payment provider webhook
// @Description Receives signed payment lifecycle events. Always 200 for verified deliveries so the provider stops retrying; reconciliation problems are recorded, not surfaced.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Payment-Signature header string true "HMAC-SHA256 signature over the raw body"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /webhooks/payment [post]
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Cannot read request body",
		})
		return
	}

	signature := c.GetHeader(signatureHeader)
	result, err := h.webhookCommands.ProcessEvent(c.Request.Context(), payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrWebhookSignatureInvalid):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid signature",
			})
		case errors.Is(err, commands.ErrWebhookMalformed):
			// Authenticated but unparseable; redelivery can never fix it, so
			// acknowledge to stop the retries.
			slog.Error("webhook payload is malformed", "error", err)
			c.JSON(http.StatusOK, gin.H{
				"received": true,
			})
		default:
			// Transient failure. The provider redelivers and dedup on the
			// event id makes the retry safe.
			slog.Error("webhook processing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Processing failed, retry",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"duplicate": result.Duplicate,
	})
}
