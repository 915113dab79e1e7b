//go:build unit

package payment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expertbooking/internal/infra/payment"
	"expertbooking/internal/pkg/config"
	"expertbooking/internal/usecase/shared"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *payment.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return payment.NewClient(config.ProviderConfig{
		Name:    "payflow",
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestCreateSession(t *testing.T) {
	expiresAt := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	t.Run("sends an authenticated idempotent request", func(t *testing.T) {
		var gotIdemKey, gotAuth string
		var gotBody map[string]any

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/checkout-sessions", r.URL.Path)
			gotIdemKey = r.Header.Get("Idempotency-Key")
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           "sess_1",
				"checkout_url": "https://pay.example.com/s/sess_1",
				"status":       "open",
				"expires_at":   expiresAt,
			})
		}))

		key := uuid.NewString()
		session, err := client.CreateSession(context.Background(), shared.CreateSessionParams{
			AmountCents:    15000,
			Methods:        []string{"card", "bank_voucher"},
			Description:    "Appointment with Dr. Vega",
			ExpiresAt:      expiresAt,
			IdempotencyKey: key,
		})
		require.NoError(t, err)

		assert.Equal(t, "sess_1", session.ID)
		assert.Equal(t, "https://pay.example.com/s/sess_1", session.CheckoutURL)
		assert.True(t, session.ExpiresAt.Equal(expiresAt))

		assert.Equal(t, key, gotIdemKey)
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, float64(15000), gotBody["amount_cents"])
		assert.Equal(t, "EUR", gotBody["currency"])
	})

	t.Run("non-2xx is a provider rejection", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"amount too small"}`, http.StatusUnprocessableEntity)
		}))

		_, err := client.CreateSession(context.Background(), shared.CreateSessionParams{})
		assert.ErrorIs(t, err, payment.ErrProviderRejected)
	})

	t.Run("unreachable provider is a provider rejection", func(t *testing.T) {
		client := payment.NewClient(config.ProviderConfig{
			BaseURL: "http://127.0.0.1:1",
			APIKey:  "test-key",
			Timeout: 200 * time.Millisecond,
		})

		_, err := client.CreateSession(context.Background(), shared.CreateSessionParams{})
		assert.ErrorIs(t, err, payment.ErrProviderRejected)
	})
}

func TestCreateRefund(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.CreateRefund(context.Background(), "sess_1", "slot already booked")
	require.NoError(t, err)
	assert.Equal(t, "sess_1", gotBody["session_id"])
	assert.Equal(t, "slot already booked", gotBody["reason"])
}
