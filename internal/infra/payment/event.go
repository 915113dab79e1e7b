package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"expertbooking/internal/usecase/shared"

	"github.com/goccy/go-json"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformedEvent   = errors.New("webhook payload is malformed")
)

type EventType string

const (
	EventSessionCreated   EventType = "session.created"
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentRefunded  EventType = "payment.refunded"
)

// Event is one signed provider webhook delivery.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      EventData `json:"data"`
}

type EventData struct {
	SessionID   string                 `json:"session_id"`
	Status      string                 `json:"status"`
	Methods     []string               `json:"methods"`
	AmountCents int64                  `json:"amount_cents"`
	ExpiresAt   time.Time              `json:"expires_at"`
	Metadata    shared.SessionMetadata `json:"metadata"`
}

// Verifier authenticates webhook payloads with the shared HMAC secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the hex-encoded HMAC-SHA256 signature over the raw body.
func (v *Verifier) Verify(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign is the counterpart used by tests to produce valid payloads.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, ErrMalformedEvent
	}
	if ev.ID == "" || ev.Type == "" || ev.Data.SessionID == "" {
		return nil, ErrMalformedEvent
	}
	return &ev, nil
}
