package shared

import (
	"time"

	"github.com/google/uuid"
)

// ExpertSnapshot is the slice of scheduling/profile data the booking path
// needs from the expert directory.
type ExpertSnapshot struct {
	ID              uuid.UUID
	DisplayName     string
	HourlyRateCents int64
	Active          bool
}

// Holder mirrors the authenticated client identity from the token.
type Holder struct {
	ID    uuid.UUID
	Email string
}

// Notification is a fire-and-forget message for the notification service.
type Notification struct {
	Topic       string         `json:"topic"`
	HolderID    uuid.UUID      `json:"holder_id"`
	HolderEmail string         `json:"holder_email"`
	ExpertID    uuid.UUID      `json:"expert_id"`
	StartAt     time.Time      `json:"start_at"`
	Extra       map[string]any `json:"extra,omitempty"`
}

const (
	TopicReservationPending  = "reservation_pending"
	TopicReservationReleased = "reservation_released"
	TopicBookingConfirmed    = "booking_confirmed"
	TopicBookingRefunded     = "booking_refunded"
)
