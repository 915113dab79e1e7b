package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"expertbooking/internal/domain/meeting"
	"expertbooking/internal/domain/policy"
	"expertbooking/internal/domain/reservation"
	"expertbooking/internal/domain/slot"
	"expertbooking/internal/infra"
	"expertbooking/internal/infra/payment"
	"expertbooking/internal/infra/repository"
	"expertbooking/internal/pkg/clock"
	"expertbooking/internal/pkg/config"
	"expertbooking/internal/pkg/errs"
	"expertbooking/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrWebhookSignatureInvalid = errs.New("webhook signature is invalid")
	ErrWebhookMalformed        = errs.New("webhook payload is malformed")
)

// anomalyError marks a payload that verified but cannot be reconciled. The
// event row keeps the reason and the delivery is acknowledged so the provider
// stops retrying something that will never succeed.
type anomalyError struct {
	reason string
}

func (e *anomalyError) Error() string { return e.reason }

func anomaly(reason string) error { return &anomalyError{reason: reason} }

type WebhookResult struct {
	EventID   string
	Duplicate bool
}

// SignatureVerifier authenticates a raw webhook body against its signature
// header.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) bool
}

type WebhookCommands interface {
	ProcessEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
}

// postAction runs after the reconciliation transaction commits. Provider
// calls and notifications never happen inside the transaction.
type postAction func(ctx context.Context)

type eventHandler func(ctx context.Context, tx shared.Tx, ev *payment.Event, now time.Time) ([]postAction, error)

type webhookUseCaseImpl struct {
	uow      shared.UnitOfWork
	gateway  shared.PaymentGateway
	notifier shared.NotificationPublisher
	verifier SignatureVerifier
	provider string
	cfg      config.BookingConfig
	clock    clock.Clock
	handlers map[payment.EventType]eventHandler
}

func NewWebhookUseCase(
	uow shared.UnitOfWork,
	gateway shared.PaymentGateway,
	notifier shared.NotificationPublisher,
	verifier SignatureVerifier,
	providerName string,
	cfg config.BookingConfig,
	clock clock.Clock,
) WebhookCommands {
	u := &webhookUseCaseImpl{
		uow:      uow,
		gateway:  gateway,
		notifier: notifier,
		verifier: verifier,
		provider: providerName,
		cfg:      cfg,
		clock:    clock,
	}
	u.handlers = map[payment.EventType]eventHandler{
		payment.EventSessionCreated:   u.handleSessionCreated,
		payment.EventPaymentSucceeded: u.handlePaymentSucceeded,
		payment.EventPaymentFailed:    u.handlePaymentFailed,
		payment.EventPaymentRefunded:  u.handlePaymentRefunded,
	}
	return u
}

func (u *webhookUseCaseImpl) ProcessEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if !u.verifier.Verify(payload, signature) {
		return nil, ErrWebhookSignatureInvalid
	}

	ev, err := payment.ParseEvent(payload)
	if err != nil {
		return nil, errs.Mark(err, ErrWebhookMalformed)
	}

	result := &WebhookResult{EventID: ev.ID}
	var actions []postAction

	err = u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		eventRowID, err := tx.WebhookEvents().Record(ctx, tx.DB(), u.provider, ev.ID, string(ev.Type), payload, true)
		if err != nil {
			if errors.Is(err, repository.ErrEventAlreadyProcessed) {
				result.Duplicate = true
				return nil
			}
			return err
		}

		handler, ok := u.handlers[ev.Type]
		if !ok {
			return tx.WebhookEvents().MarkFailed(ctx, tx.DB(), eventRowID, "unknown event type: "+string(ev.Type))
		}

		acts, err := handler(ctx, tx, ev, u.clock.Now())
		if err != nil {
			var anom *anomalyError
			if errors.As(err, &anom) {
				slog.Error("webhook event cannot be reconciled",
					"provider", u.provider, "event_id", ev.ID, "type", ev.Type, "reason", anom.reason)
				return tx.WebhookEvents().MarkFailed(ctx, tx.DB(), eventRowID, anom.reason)
			}
			return err
		}
		actions = acts
		return tx.WebhookEvents().MarkProcessed(ctx, tx.DB(), eventRowID)
	})
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	for _, act := range actions {
		act(ctx)
	}
	return result, nil
}

// handleSessionCreated mirrors the session and makes sure a delayed-method
// checkout has its hold. The hold normally predates the session; this path
// restores it if the booking request died between reserving and attaching,
// or if this event raced ahead of the booking response.
func (u *webhookUseCaseImpl) handleSessionCreated(ctx context.Context, tx shared.Tx, ev *payment.Event, now time.Time) ([]postAction, error) {
	if settled, err := u.sessionAlreadySettled(ctx, tx, ev.Data.SessionID); err != nil {
		return nil, err
	} else if settled {
		return nil, nil
	}

	md := ev.Data.Metadata
	if md.ExpertID == uuid.Nil || md.HolderID == uuid.Nil {
		return nil, anomaly("session.created metadata is missing expert or holder")
	}

	rec := repository.SessionRecord{
		ID:            ev.Data.SessionID,
		ExpertID:      md.ExpertID,
		HolderID:      md.HolderID,
		HolderEmail:   md.HolderEmail,
		StartAt:       md.StartAt,
		Methods:       ev.Data.Methods,
		Status:        repository.SessionStatusOpen,
		AmountCents:   ev.Data.AmountCents,
		ReservationID: md.ReservationID,
		ExpiresAt:     ev.Data.ExpiresAt,
	}
	if err := tx.Sessions().Upsert(ctx, tx.DB(), rec); err != nil {
		return nil, err
	}

	if !hasDelayedMethod(ev.Data.Methods) {
		return nil, nil
	}
	return nil, u.ensureHold(ctx, tx, ev, now)
}

func (u *webhookUseCaseImpl) ensureHold(ctx context.Context, tx shared.Tx, ev *payment.Event, now time.Time) error {
	md := ev.Data.Metadata
	holder := slot.Holder{ID: md.HolderID, Email: md.HolderEmail}

	live, err := tx.Reservations().FindLiveBySlot(ctx, tx.DB(), md.ExpertID, md.StartAt, now)
	switch {
	case err == nil:
		if !live.HeldBy(holder) {
			slog.Warn("slot held by another client, session left to expire",
				"session_id", ev.Data.SessionID, "expert_id", md.ExpertID, "start_at", md.StartAt)
			return nil
		}
		return tx.Reservations().AttachSession(ctx, tx.DB(), live.ID(), ev.Data.SessionID)
	case infra.IsKind(err, infra.KindNotFound):
		// Fall through to recreate the hold.
	default:
		return err
	}

	sl := slot.ReconstructSlot(md.ExpertID, md.StartAt)
	hold, err := reservation.NewHold(sl, holder, now, u.cfg.ReservationWindow)
	if err != nil {
		return anomaly("cannot rebuild hold from session.created: " + err.Error())
	}
	if err := hold.AttachSession(ev.Data.SessionID); err != nil {
		return err
	}

	if _, err := tx.Reservations().TryReserve(ctx, tx.DB(), hold, now); err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			slog.Warn("slot taken before hold could be restored",
				"session_id", ev.Data.SessionID, "expert_id", md.ExpertID, "start_at", md.StartAt)
			return nil
		}
		return err
	}
	return nil
}

// handlePaymentSucceeded converts a settled session into a meeting exactly
// once. A settlement that loses the slot to an earlier one is refunded
// rather than silently double-booked.
func (u *webhookUseCaseImpl) handlePaymentSucceeded(ctx context.Context, tx shared.Tx, ev *payment.Event, now time.Time) ([]postAction, error) {
	if settled, err := u.sessionAlreadySettled(ctx, tx, ev.Data.SessionID); err != nil {
		return nil, err
	} else if settled {
		return nil, nil
	}

	sl, holder, err := u.resolveBooking(ctx, tx, ev)
	if err != nil {
		return nil, err
	}

	if winner, err := tx.Meetings().FindBySlot(ctx, tx.DB(), sl.ExpertID(), sl.StartAt()); err == nil {
		return u.refundLoser(ctx, tx, ev.Data.SessionID, winner, sl, holder)
	} else if !infra.IsKind(err, infra.KindNotFound) {
		return nil, err
	}

	m, err := meeting.NewFromSettlement(sl, holder, u.cfg.AppointmentLength, ev.Data.SessionID, now)
	if err != nil {
		return nil, anomaly("cannot build meeting from settlement: " + err.Error())
	}

	_, created, err := tx.Meetings().CreateIfAbsent(ctx, tx.DB(), m)
	if err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			// Lost the slot unique constraint to a concurrent settlement.
			winner, ferr := tx.Meetings().FindBySlot(ctx, tx.DB(), sl.ExpertID(), sl.StartAt())
			if ferr != nil {
				return nil, ferr
			}
			return u.refundLoser(ctx, tx, ev.Data.SessionID, winner, sl, holder)
		}
		return nil, err
	}
	if !created {
		return nil, nil
	}

	// Confirmed rows never expire, so the slot stays blocked at the
	// reservation level alongside the meeting.
	if err := tx.Reservations().ConfirmBySession(ctx, tx.DB(), ev.Data.SessionID); err != nil {
		return nil, err
	}
	if err := tx.Sessions().UpdateStatus(ctx, tx.DB(), ev.Data.SessionID, repository.SessionStatusPaid); err != nil {
		return nil, err
	}

	return []postAction{
		u.notifyAction(shared.Notification{
			Topic:       shared.TopicBookingConfirmed,
			HolderID:    holder.ID,
			HolderEmail: holder.Email,
			ExpertID:    sl.ExpertID(),
			StartAt:     sl.StartAt(),
			Extra:       map[string]any{"session_id": ev.Data.SessionID},
		}),
	}, nil
}

// refundLoser acknowledges a settlement that arrived after the slot was
// already booked through another session. The money goes back and the client
// is told; the winner's meeting is untouched.
func (u *webhookUseCaseImpl) refundLoser(
	ctx context.Context,
	tx shared.Tx,
	sessionID string,
	winner *meeting.Meeting,
	sl slot.Slot,
	holder slot.Holder,
) ([]postAction, error) {
	if winner.PaymentSessionID() == sessionID {
		// Same session, already converted.
		return nil, nil
	}

	if err := tx.Reservations().ReleaseBySession(ctx, tx.DB(), sessionID); err != nil {
		return nil, err
	}
	if err := tx.Sessions().UpdateStatus(ctx, tx.DB(), sessionID, repository.SessionStatusPaid); err != nil {
		return nil, err
	}

	slog.Warn("settled session lost the slot, refunding",
		"session_id", sessionID, "winner_session_id", winner.PaymentSessionID(),
		"expert_id", sl.ExpertID(), "start_at", sl.StartAt())

	refund := func(ctx context.Context) {
		if err := u.gateway.CreateRefund(ctx, sessionID, "slot already booked"); err != nil {
			slog.Error("refund request failed, manual follow-up required",
				"session_id", sessionID, "error", err)
		}
	}
	notify := u.notifyAction(shared.Notification{
		Topic:       shared.TopicBookingRefunded,
		HolderID:    holder.ID,
		HolderEmail: holder.Email,
		ExpertID:    sl.ExpertID(),
		StartAt:     sl.StartAt(),
		Extra:       map[string]any{"session_id": sessionID, "reason": "slot_already_booked"},
	})
	return []postAction{refund, notify}, nil
}

// handlePaymentFailed releases the hold early instead of waiting out the
// reservation window.
func (u *webhookUseCaseImpl) handlePaymentFailed(ctx context.Context, tx shared.Tx, ev *payment.Event, _ time.Time) ([]postAction, error) {
	if err := tx.Reservations().ReleaseBySession(ctx, tx.DB(), ev.Data.SessionID); err != nil {
		return nil, err
	}
	if err := tx.Sessions().UpdateStatus(ctx, tx.DB(), ev.Data.SessionID, repository.SessionStatusFailed); err != nil {
		return nil, err
	}

	md := ev.Data.Metadata
	if md.HolderID == uuid.Nil {
		return nil, nil
	}
	return []postAction{
		u.notifyAction(shared.Notification{
			Topic:       shared.TopicReservationReleased,
			HolderID:    md.HolderID,
			HolderEmail: md.HolderEmail,
			ExpertID:    md.ExpertID,
			StartAt:     md.StartAt,
			Extra:       map[string]any{"session_id": ev.Data.SessionID, "reason": "payment_failed"},
		}),
	}, nil
}

// handlePaymentRefunded flips the meeting's payment status. The meeting row
// itself survives as the historical record. A refund for a session that
// never became a meeting is the provider confirming our own loser refund.
func (u *webhookUseCaseImpl) handlePaymentRefunded(ctx context.Context, tx shared.Tx, ev *payment.Event, _ time.Time) ([]postAction, error) {
	err := tx.Meetings().MarkRefundedBySession(ctx, tx.DB(), ev.Data.SessionID)
	if err != nil && !infra.IsKind(err, infra.KindNotFound) {
		return nil, err
	}
	meetingRefunded := err == nil

	if uerr := tx.Sessions().UpdateStatus(ctx, tx.DB(), ev.Data.SessionID, repository.SessionStatusRefunded); uerr != nil {
		return nil, uerr
	}
	if !meetingRefunded {
		return nil, nil
	}

	sl, holder, rerr := u.resolveBooking(ctx, tx, ev)
	if rerr != nil {
		// The refund is applied; only the notification is lost.
		slog.Warn("cannot resolve booking for refund notification",
			"session_id", ev.Data.SessionID, "error", rerr)
		return nil, nil
	}
	return []postAction{
		u.notifyAction(shared.Notification{
			Topic:       shared.TopicBookingRefunded,
			HolderID:    holder.ID,
			HolderEmail: holder.Email,
			ExpertID:    sl.ExpertID(),
			StartAt:     sl.StartAt(),
			Extra:       map[string]any{"session_id": ev.Data.SessionID},
		}),
	}, nil
}

func (u *webhookUseCaseImpl) sessionAlreadySettled(ctx context.Context, tx shared.Tx, sessionID string) (bool, error) {
	_, err := tx.Meetings().FindBySession(ctx, tx.DB(), sessionID)
	if err == nil {
		return true, nil
	}
	if infra.IsKind(err, infra.KindNotFound) {
		return false, nil
	}
	return false, err
}

// resolveBooking extracts the booking identity from event metadata, falling
// back to the local session mirror when the provider dropped it.
func (u *webhookUseCaseImpl) resolveBooking(ctx context.Context, tx shared.Tx, ev *payment.Event) (slot.Slot, slot.Holder, error) {
	md := ev.Data.Metadata
	if md.ExpertID != uuid.Nil && md.HolderID != uuid.Nil {
		return slot.ReconstructSlot(md.ExpertID, md.StartAt), slot.Holder{ID: md.HolderID, Email: md.HolderEmail}, nil
	}

	rec, err := tx.Sessions().FindByID(ctx, tx.DB(), ev.Data.SessionID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return slot.Slot{}, slot.Holder{}, anomaly("event carries no usable metadata and session is unknown")
		}
		return slot.Slot{}, slot.Holder{}, err
	}
	return slot.ReconstructSlot(rec.ExpertID, rec.StartAt), slot.Holder{ID: rec.HolderID, Email: rec.HolderEmail}, nil
}

func (u *webhookUseCaseImpl) notifyAction(n shared.Notification) postAction {
	return func(ctx context.Context) {
		if err := u.notifier.Publish(ctx, n); err != nil {
			slog.Warn("failed to publish notification", "topic", n.Topic, "error", err)
		}
	}
}

func hasDelayedMethod(methods []string) bool {
	for _, m := range methods {
		if m == string(policy.MethodBankVoucher) {
			return true
		}
	}
	return false
}
