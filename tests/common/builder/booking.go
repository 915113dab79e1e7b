package builder

import (
	"time"

	"expertbooking/internal/domain/meeting"
	"expertbooking/internal/domain/reservation"
	"expertbooking/internal/domain/slot"

	"github.com/google/uuid"
)

// BaseTime is a fixed anchor so boundary tests are deterministic.
var BaseTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type HoldBuilder struct {
	expertID uuid.UUID
	holder   slot.Holder
	startAt  time.Time
	now      time.Time
	window   time.Duration
}

func NewHoldBuilder() *HoldBuilder {
	return &HoldBuilder{
		expertID: uuid.New(),
		holder:   slot.Holder{ID: uuid.New(), Email: "client@example.com"},
		startAt:  BaseTime.Add(120 * time.Hour),
		now:      BaseTime,
		window:   24 * time.Hour,
	}
}

func (b *HoldBuilder) WithExpertID(id uuid.UUID) *HoldBuilder {
	b.expertID = id
	return b
}

func (b *HoldBuilder) WithHolder(h slot.Holder) *HoldBuilder {
	b.holder = h
	return b
}

func (b *HoldBuilder) WithStartAt(t time.Time) *HoldBuilder {
	b.startAt = t
	return b
}

func (b *HoldBuilder) WithNow(t time.Time) *HoldBuilder {
	b.now = t
	return b
}

func (b *HoldBuilder) WithWindow(d time.Duration) *HoldBuilder {
	b.window = d
	return b
}

func (b *HoldBuilder) Build() (*reservation.Reservation, error) {
	return reservation.NewHold(slot.ReconstructSlot(b.expertID, b.startAt), b.holder, b.now, b.window)
}

type MeetingBuilder struct {
	expertID  uuid.UUID
	holder    slot.Holder
	startAt   time.Time
	length    time.Duration
	sessionID string
	now       time.Time
}

func NewMeetingBuilder() *MeetingBuilder {
	return &MeetingBuilder{
		expertID:  uuid.New(),
		holder:    slot.Holder{ID: uuid.New(), Email: "client@example.com"},
		startAt:   BaseTime.Add(120 * time.Hour),
		length:    time.Hour,
		sessionID: "sess_" + uuid.NewString(),
		now:       BaseTime,
	}
}

func (b *MeetingBuilder) WithExpertID(id uuid.UUID) *MeetingBuilder {
	b.expertID = id
	return b
}

func (b *MeetingBuilder) WithHolder(h slot.Holder) *MeetingBuilder {
	b.holder = h
	return b
}

func (b *MeetingBuilder) WithStartAt(t time.Time) *MeetingBuilder {
	b.startAt = t
	return b
}

func (b *MeetingBuilder) WithLength(d time.Duration) *MeetingBuilder {
	b.length = d
	return b
}

func (b *MeetingBuilder) WithSessionID(id string) *MeetingBuilder {
	b.sessionID = id
	return b
}

func (b *MeetingBuilder) Build() (*meeting.Meeting, error) {
	return meeting.NewFromSettlement(
		slot.ReconstructSlot(b.expertID, b.startAt), b.holder, b.length, b.sessionID, b.now)
}
