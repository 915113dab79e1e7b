package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionMetadata travels to the provider at session creation and comes back
// on every webhook, so a booking can be reconstructed from a bare payload.
type SessionMetadata struct {
	ExpertID      uuid.UUID  `json:"expert_id"`
	HolderID      uuid.UUID  `json:"holder_id"`
	HolderEmail   string     `json:"holder_email"`
	StartAt       time.Time  `json:"start_at"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
}

type CreateSessionParams struct {
	AmountCents    int64
	Methods        []string
	Description    string
	ExpiresAt      time.Time
	Metadata       SessionMetadata
	IdempotencyKey string
}

type PaymentSession struct {
	ID          string
	CheckoutURL string
	Status      string
	ExpiresAt   time.Time
}

// PaymentGateway wraps the external provider. Session creation is never
// retried here; the caller retries with the same idempotency key.
type PaymentGateway interface {
	CreateSession(ctx context.Context, p CreateSessionParams) (*PaymentSession, error)
	CreateRefund(ctx context.Context, sessionID, reason string) error
}

// IdempotencyCache fronts mutating booking requests. Begin returns the
// cached record on replay, nil once the per-key lock is acquired.
type IdempotencyCache interface {
	Begin(ctx context.Context, holder, key uuid.UUID, requestHash string) (*IdempotencyRecord, error)
	Complete(ctx context.Context, holder, key uuid.UUID, requestHash string, response []byte) error
	Abort(ctx context.Context, holder, key uuid.UUID) error
}

type IdempotencyRecord struct {
	RequestHash string
	Response    []byte
}
