package meeting

import (
	"errors"
	"time"

	"expertbooking/internal/domain/slot"

	"github.com/google/uuid"
)

var (
	ErrInvalidHolder    = errors.New("holder identity is required")
	ErrMissingSession   = errors.New("payment session id is required")
	ErrInvalidEndTime   = errors.New("end time must be after start time")
	ErrAlreadyRefunded  = errors.New("meeting payment is already refunded")
	ErrInvalidPayStatus = errors.New("invalid payment status")
)

type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Meeting is the durable booking record, created exactly once per settled
// payment session. It is never deleted; a refund only flips paymentStatus so
// the historical record survives.
type Meeting struct {
	id               uuid.UUID
	slot             slot.Slot
	holder           slot.Holder
	endAt            time.Time
	paymentStatus    PaymentStatus
	paymentSessionID string
	createdAt        time.Time
}

// NewFromSettlement builds the meeting for a settled session.
func NewFromSettlement(s slot.Slot, holder slot.Holder, length time.Duration, sessionID string, now time.Time) (*Meeting, error) {
	if holder.IsZero() {
		return nil, ErrInvalidHolder
	}
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	if length <= 0 {
		return nil, ErrInvalidEndTime
	}
	return &Meeting{
		id:               uuid.New(),
		slot:             s,
		holder:           holder,
		endAt:            s.StartAt().Add(length),
		paymentStatus:    PaymentStatusPaid,
		paymentSessionID: sessionID,
		createdAt:        now.UTC(),
	}, nil
}

func Reconstruct(
	id uuid.UUID,
	s slot.Slot,
	holder slot.Holder,
	endAt time.Time,
	paymentStatus PaymentStatus,
	paymentSessionID string,
	createdAt time.Time,
) *Meeting {
	return &Meeting{
		id:               id,
		slot:             s,
		holder:           holder,
		endAt:            endAt,
		paymentStatus:    paymentStatus,
		paymentSessionID: paymentSessionID,
		createdAt:        createdAt,
	}
}

func (m *Meeting) MarkRefunded() error {
	if m.paymentStatus == PaymentStatusRefunded {
		return ErrAlreadyRefunded
	}
	m.paymentStatus = PaymentStatusRefunded
	return nil
}

func (m *Meeting) ID() uuid.UUID                { return m.id }
func (m *Meeting) Slot() slot.Slot              { return m.slot }
func (m *Meeting) Holder() slot.Holder          { return m.holder }
func (m *Meeting) EndAt() time.Time             { return m.endAt }
func (m *Meeting) PaymentStatus() PaymentStatus { return m.paymentStatus }
func (m *Meeting) PaymentSessionID() string     { return m.paymentSessionID }
func (m *Meeting) CreatedAt() time.Time         { return m.createdAt }
