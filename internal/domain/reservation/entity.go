package reservation

import (
	"errors"
	"time"

	"expertbooking/internal/domain/slot"

	"github.com/google/uuid"
)

var (
	ErrInvalidHolder     = errors.New("holder identity is required")
	ErrInvalidExpiry     = errors.New("expiry must be after creation time")
	ErrNotHeld           = errors.New("reservation is not in held status")
	ErrAlreadyConfirmed  = errors.New("reservation is already confirmed")
	ErrSessionAlreadySet = errors.New("payment session is already attached")
	ErrInvalidStatus     = errors.New("invalid reservation status")
)

// Reservation is a time-bounded hold on a slot pending payment settlement.
// Rows past expiresAt are logically dead even before the reaper deletes them.
type Reservation struct {
	id               uuid.UUID
	slot             slot.Slot
	holder           slot.Holder
	status           Status
	paymentSessionID *string
	expiresAt        time.Time
	createdAt        time.Time
	updatedAt        time.Time
}

// NewHold creates a held reservation expiring after window.
func NewHold(s slot.Slot, holder slot.Holder, now time.Time, window time.Duration) (*Reservation, error) {
	if holder.IsZero() {
		return nil, ErrInvalidHolder
	}
	if window <= 0 {
		return nil, ErrInvalidExpiry
	}
	return &Reservation{
		id:        uuid.New(),
		slot:      s,
		holder:    holder,
		status:    StatusHeld,
		expiresAt: now.Add(window).UTC(),
		createdAt: now.UTC(),
		updatedAt: now.UTC(),
	}, nil
}

func Reconstruct(
	id uuid.UUID,
	s slot.Slot,
	holder slot.Holder,
	status Status,
	paymentSessionID *string,
	expiresAt, createdAt, updatedAt time.Time,
) *Reservation {
	return &Reservation{
		id:               id,
		slot:             s,
		holder:           holder,
		status:           status,
		paymentSessionID: paymentSessionID,
		expiresAt:        expiresAt,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

func (r *Reservation) AttachSession(sessionID string) error {
	if r.paymentSessionID != nil {
		if *r.paymentSessionID == sessionID {
			return nil
		}
		return ErrSessionAlreadySet
	}
	r.paymentSessionID = &sessionID
	return nil
}

func (r *Reservation) Confirm() error {
	switch r.status {
	case StatusConfirmed:
		return ErrAlreadyConfirmed
	case StatusHeld:
		r.status = StatusConfirmed
		return nil
	default:
		return ErrNotHeld
	}
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.expiresAt)
}

// IsLive reports whether this row still blocks the slot.
func (r *Reservation) IsLive(now time.Time) bool {
	return !r.IsExpired(now)
}

func (r *Reservation) HeldBy(holder slot.Holder) bool {
	return r.holder.ID == holder.ID
}

func (r *Reservation) ID() uuid.UUID             { return r.id }
func (r *Reservation) Slot() slot.Slot           { return r.slot }
func (r *Reservation) Holder() slot.Holder       { return r.holder }
func (r *Reservation) Status() Status            { return r.status }
func (r *Reservation) PaymentSessionID() *string { return r.paymentSessionID }
func (r *Reservation) ExpiresAt() time.Time      { return r.expiresAt }
func (r *Reservation) CreatedAt() time.Time      { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time      { return r.updatedAt }
