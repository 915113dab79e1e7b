//go:build unit

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expertbooking/internal/handler/api"
	"expertbooking/internal/pkg/errs"
	"expertbooking/internal/usecase/commands"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubWebhookCommands struct {
	result *commands.WebhookResult
	err    error
}

func (s *stubWebhookCommands) ProcessEvent(_ context.Context, _ []byte, _ string) (*commands.WebhookResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func postWebhook(t *testing.T, stub *stubWebhookCommands) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/webhooks/payment", api.NewWebhookHandler(stub).HandlePaymentEvent)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("X-Payment-Signature", "sig")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlePaymentEvent(t *testing.T) {
	t.Run("processed delivery is acknowledged", func(t *testing.T) {
		rec := postWebhook(t, &stubWebhookCommands{
			result: &commands.WebhookResult{EventID: "evt_1"},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"received":true`)
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		rec := postWebhook(t, &stubWebhookCommands{err: commands.ErrWebhookSignatureInvalid})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("signed but malformed payload is acknowledged", func(t *testing.T) {
		// Redelivery can never fix the payload, so the provider must not
		// keep retrying it.
		rec := postWebhook(t, &stubWebhookCommands{err: commands.ErrWebhookMalformed})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"received":true`)
	})

	t.Run("transient failure asks for redelivery", func(t *testing.T) {
		rec := postWebhook(t, &stubWebhookCommands{err: errs.New("connection reset")})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
