package response

import (
	"time"

	"expertbooking/internal/usecase/commands"
	"expertbooking/internal/usecase/queries"

	"github.com/google/uuid"
)

type BookingIntentResponse struct {
	SessionID      string     `json:"sessionId"`
	CheckoutURL    string     `json:"checkoutUrl"`
	AllowedMethods []string   `json:"allowedMethods"`
	AmountCents    int64      `json:"amountCents"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	ReservationID  *uuid.UUID `json:"reservationId,omitempty"`
}

type MeetingResponse struct {
	ID               uuid.UUID `json:"id"`
	ExpertID         uuid.UUID `json:"expertId"`
	ExpertName       string    `json:"expertName"`
	StartAt          time.Time `json:"startAt"`
	EndAt            time.Time `json:"endAt"`
	PaymentStatus    string    `json:"paymentStatus"`
	PaymentSessionID string    `json:"paymentSessionId"`
	CreatedAt        time.Time `json:"createdAt"`
}

type IntentStatusResponse struct {
	SessionID            string     `json:"sessionId"`
	Status               string     `json:"status"`
	Methods              []string   `json:"methods"`
	AmountCents          int64      `json:"amountCents"`
	ExpiresAt            time.Time  `json:"expiresAt"`
	ReservationID        *uuid.UUID `json:"reservationId,omitempty"`
	ReservationStatus    *string    `json:"reservationStatus,omitempty"`
	ReservationExpiresAt *time.Time `json:"reservationExpiresAt,omitempty"`
	MeetingID            *uuid.UUID `json:"meetingId,omitempty"`
}

type ReaperRunResponse struct {
	Released int64 `json:"released"`
}

func FromBookingIntentResult(r *commands.BookingIntentResult) *BookingIntentResponse {
	return &BookingIntentResponse{
		SessionID:      r.SessionID,
		CheckoutURL:    r.CheckoutURL,
		AllowedMethods: r.AllowedMethods,
		AmountCents:    r.AmountCents,
		ExpiresAt:      r.ExpiresAt,
		ReservationID:  r.ReservationID,
	}
}

func FromMeetingView(rm *queries.MeetingView) *MeetingResponse {
	return &MeetingResponse{
		ID:               rm.ID,
		ExpertID:         rm.ExpertID,
		ExpertName:       rm.ExpertName,
		StartAt:          rm.StartAt,
		EndAt:            rm.EndAt,
		PaymentStatus:    rm.PaymentStatus,
		PaymentSessionID: rm.PaymentSessionID,
		CreatedAt:        rm.CreatedAt,
	}
}

func FromIntentStatusView(rm *queries.IntentStatusView) *IntentStatusResponse {
	return &IntentStatusResponse{
		SessionID:            rm.SessionID,
		Status:               rm.Status,
		Methods:              rm.Methods,
		AmountCents:          rm.AmountCents,
		ExpiresAt:            rm.ExpiresAt,
		ReservationID:        rm.ReservationID,
		ReservationStatus:    rm.ReservationStatus,
		ReservationExpiresAt: rm.ReservationExpiresAt,
		MeetingID:            rm.MeetingID,
	}
}
