//go:build unit

package payment_test

import (
	"testing"
	"time"

	"expertbooking/internal/infra/payment"
	"expertbooking/internal/usecase/shared"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier(t *testing.T) {
	v := payment.NewVerifier("secret")
	payload := []byte(`{"id":"evt_1","type":"payment.succeeded"}`)

	t.Run("accepts its own signature", func(t *testing.T) {
		assert.True(t, v.Verify(payload, v.Sign(payload)))
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		sig := v.Sign(payload)
		assert.False(t, v.Verify([]byte(`{"id":"evt_2","type":"payment.succeeded"}`), sig))
	})

	t.Run("rejects a signature under another secret", func(t *testing.T) {
		other := payment.NewVerifier("other-secret")
		assert.False(t, v.Verify(payload, other.Sign(payload)))
	})

	t.Run("rejects junk signatures", func(t *testing.T) {
		assert.False(t, v.Verify(payload, ""))
		assert.False(t, v.Verify(payload, "not-hex"))
	})
}

func TestParseEvent(t *testing.T) {
	t.Run("full event round trip", func(t *testing.T) {
		ev := payment.Event{
			ID:        "evt_1",
			Type:      payment.EventPaymentSucceeded,
			CreatedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			Data: payment.EventData{
				SessionID:   "sess_1",
				Status:      "paid",
				Methods:     []string{"card"},
				AmountCents: 15000,
				Metadata: shared.SessionMetadata{
					ExpertID: uuid.New(),
					HolderID: uuid.New(),
				},
			},
		}
		payload, err := json.Marshal(ev)
		require.NoError(t, err)

		got, err := payment.ParseEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, ev.Type, got.Type)
		assert.Equal(t, ev.Data.Metadata.ExpertID, got.Data.Metadata.ExpertID)
	})

	t.Run("rejects invalid payloads", func(t *testing.T) {
		tests := []struct {
			name    string
			payload string
		}{
			{"not json", "not json at all"},
			{"missing id", `{"type":"payment.succeeded","data":{"session_id":"sess_1"}}`},
			{"missing type", `{"id":"evt_1","data":{"session_id":"sess_1"}}`},
			{"missing session", `{"id":"evt_1","type":"payment.succeeded","data":{}}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := payment.ParseEvent([]byte(tt.payload))
				assert.ErrorIs(t, err, payment.ErrMalformedEvent)
			})
		}
	})
}
