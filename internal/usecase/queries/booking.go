package queries

import (
	"context"
	"time"

	"expertbooking/internal/infra"
	"expertbooking/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrMeetingNotFound = errs.New("meeting not found")
	ErrIntentNotFound  = errs.New("booking intent not found")
	ErrQueryFailed     = errs.New("query failed")
)

// Read models (DTO for read side)
type MeetingView struct {
	ID               uuid.UUID `json:"id"`
	ExpertID         uuid.UUID `json:"expert_id"`
	ExpertName       string    `json:"expert_name"`
	HolderID         uuid.UUID `json:"holder_id"`
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	PaymentStatus    string    `json:"payment_status"`
	PaymentSessionID string    `json:"payment_session_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// IntentStatusView lets the checkout client poll where its booking stands:
// session status plus whichever of the hold and the meeting exist right now.
type IntentStatusView struct {
	SessionID            string     `json:"session_id"`
	Status               string     `json:"status"`
	Methods              []string   `json:"methods"`
	AmountCents          int64      `json:"amount_cents"`
	ExpiresAt            time.Time  `json:"expires_at"`
	ReservationID        *uuid.UUID `json:"reservation_id,omitempty"`
	ReservationStatus    *string    `json:"reservation_status,omitempty"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	MeetingID            *uuid.UUID `json:"meeting_id,omitempty"`
}

type BookingQueries interface {
	GetMeeting(ctx context.Context, holderID, meetingID uuid.UUID) (*MeetingView, error)
	ListMeetings(ctx context.Context, holderID uuid.UUID, limit int) ([]*MeetingView, error)
	GetIntentStatus(ctx context.Context, holderID uuid.UUID, sessionID string) (*IntentStatusView, error)
}

type BookingViewRepo interface {
	FindMeetingByID(ctx context.Context, id uuid.UUID) (*MeetingView, error)
	FindMeetingsByHolder(ctx context.Context, holderID uuid.UUID, limit int32) ([]*MeetingView, error)
	FindIntentStatus(ctx context.Context, holderID uuid.UUID, sessionID string) (*IntentStatusView, error)
}

type bookingQueriesImpl struct {
	repo BookingViewRepo
}

func NewBookingQueries(repo BookingViewRepo) BookingQueries {
	return &bookingQueriesImpl{repo: repo}
}

// GetMeeting scopes access to the owning holder. Other holders see the same
// not-found as a missing row so the endpoint leaks nothing.
func (q *bookingQueriesImpl) GetMeeting(ctx context.Context, holderID, meetingID uuid.UUID) (*MeetingView, error) {
	view, err := q.repo.FindMeetingByID(ctx, meetingID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, errs.Mark(err, ErrQueryFailed)
	}
	if view.HolderID != holderID {
		return nil, ErrMeetingNotFound
	}
	return view, nil
}

func (q *bookingQueriesImpl) ListMeetings(ctx context.Context, holderID uuid.UUID, limit int) ([]*MeetingView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	views, err := q.repo.FindMeetingsByHolder(ctx, holderID, int32(limit))
	if err != nil {
		return nil, errs.Mark(err, ErrQueryFailed)
	}
	return views, nil
}

func (q *bookingQueriesImpl) GetIntentStatus(ctx context.Context, holderID uuid.UUID, sessionID string) (*IntentStatusView, error) {
	view, err := q.repo.FindIntentStatus(ctx, holderID, sessionID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, errs.Mark(err, ErrQueryFailed)
	}
	return view, nil
}
