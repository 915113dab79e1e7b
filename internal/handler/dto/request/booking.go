package request

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrZeroStartTime = errors.New("start time is required")

type CreateBookingIntentRequest struct {
	ExpertID uuid.UUID `json:"expert_id" binding:"required"`
	StartAt  time.Time `json:"start_at" binding:"required"`
}

// BookingIntentData carries the validated, normalized request fields.
type BookingIntentData struct {
	ExpertID uuid.UUID
	StartAt  time.Time
}

func (r CreateBookingIntentRequest) ToDomain() (*BookingIntentData, error) {
	if r.StartAt.IsZero() {
		return nil, ErrZeroStartTime
	}
	return &BookingIntentData{
		ExpertID: r.ExpertID,
		StartAt:  r.StartAt.UTC(),
	}, nil
}
