package slot

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSchedule = errors.New("appointment start must be in the future")
	ErrMissingExpert   = errors.New("expert id is required")
)

// Slot is one bookable appointment opportunity: an expert at a start time.
// Start times are normalized to UTC so (expert, start) comparisons are stable
// across handler instances.
type Slot struct {
	expertID uuid.UUID
	startAt  time.Time
}

func NewSlot(expertID uuid.UUID, startAt time.Time, now time.Time) (Slot, error) {
	if expertID == uuid.Nil {
		return Slot{}, ErrMissingExpert
	}
	if !startAt.After(now) {
		return Slot{}, ErrInvalidSchedule
	}
	return Slot{
		expertID: expertID,
		startAt:  startAt.UTC(),
	}, nil
}

func ReconstructSlot(expertID uuid.UUID, startAt time.Time) Slot {
	return Slot{
		expertID: expertID,
		startAt:  startAt.UTC(),
	}
}

func (s Slot) ExpertID() uuid.UUID { return s.expertID }
func (s Slot) StartAt() time.Time  { return s.startAt }

func (s Slot) Equal(other Slot) bool {
	return s.expertID == other.expertID && s.startAt.Equal(other.startAt)
}

// Holder is the client identity attempting to occupy a slot.
type Holder struct {
	ID    uuid.UUID
	Email string
}

func (h Holder) IsZero() bool {
	return h.ID == uuid.Nil
}
