package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"expertbooking/internal/domain/policy"
	"expertbooking/internal/domain/reservation"
	"expertbooking/internal/domain/slot"
	reqdto "expertbooking/internal/handler/dto/request"
	"expertbooking/internal/infra"
	"expertbooking/internal/infra/idempotency"
	"expertbooking/internal/infra/repository"
	"expertbooking/internal/pkg/clock"
	"expertbooking/internal/pkg/config"
	"expertbooking/internal/pkg/errs"
	"expertbooking/internal/usecase/shared"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrExpertNotFound          = errs.New("expert not found")
	ErrExpertInactive          = errs.New("expert is not accepting bookings")
	ErrInvalidSchedule         = errs.New("appointment start must be in the future")
	ErrSlotConflict            = errs.New("slot is already reserved or booked")
	ErrIdempotencyInProgress   = errs.New("request with this idempotency key is in progress")
	ErrIdempotencyKeyReused    = errs.New("idempotency key reused with a different request")
	ErrIdempotencyUnavailable  = errs.New("idempotency store unavailable")
	ErrPaymentProviderFailed   = errs.New("payment provider rejected the session")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

// BookingIntentResult is what the checkout client needs: where to pay, with
// what, and until when. It is also the replay body stored under the
// idempotency key.
type BookingIntentResult struct {
	SessionID      string     `json:"session_id"`
	CheckoutURL    string     `json:"checkout_url"`
	AllowedMethods []string   `json:"allowed_methods"`
	AmountCents    int64      `json:"amount_cents"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ReservationID  *uuid.UUID `json:"reservation_id,omitempty"`
	IsReplayed     bool       `json:"-"`
}

type BookingCommands interface {
	CreateIntent(ctx context.Context, req reqdto.CreateBookingIntentRequest, holder shared.Holder, idempotencyKey uuid.UUID) (*BookingIntentResult, error)
}

type bookingUseCaseImpl struct {
	uow       shared.UnitOfWork
	idem      shared.IdempotencyCache
	gateway   shared.PaymentGateway
	directory shared.ExpertDirectory
	notifier  shared.NotificationPublisher
	selector  *policy.Selector
	cfg       config.BookingConfig
	clock     clock.Clock
}

func NewBookingUseCase(
	uow shared.UnitOfWork,
	idem shared.IdempotencyCache,
	gateway shared.PaymentGateway,
	directory shared.ExpertDirectory,
	notifier shared.NotificationPublisher,
	selector *policy.Selector,
	cfg config.BookingConfig,
	clock clock.Clock,
) BookingCommands {
	return &bookingUseCaseImpl{
		uow:       uow,
		idem:      idem,
		gateway:   gateway,
		directory: directory,
		notifier:  notifier,
		selector:  selector,
		cfg:       cfg,
		clock:     clock,
	}
}

func (b *bookingUseCaseImpl) CreateIntent(
	ctx context.Context,
	req reqdto.CreateBookingIntentRequest,
	holder shared.Holder,
	idempotencyKey uuid.UUID,
) (*BookingIntentResult, error) {
	requestHash := calculateRequestHash(req)

	replayed, err := b.beginIdempotent(ctx, holder.ID, idempotencyKey, requestHash)
	if err != nil {
		return nil, err
	}
	if replayed != nil {
		return replayed, nil
	}

	result, err := b.createNewIntent(ctx, req, holder, idempotencyKey, requestHash)
	if err != nil {
		b.abortIdempotent(ctx, holder.ID, idempotencyKey)
		return nil, err
	}
	return result, nil
}

// beginIdempotent acquires the per-key lock or returns the completed result
// of a previous attempt. A nil, nil return means the caller owns the key.
func (b *bookingUseCaseImpl) beginIdempotent(
	ctx context.Context,
	holderID, idempotencyKey uuid.UUID,
	requestHash string,
) (*BookingIntentResult, error) {
	rec, err := b.idem.Begin(ctx, holderID, idempotencyKey, requestHash)
	if err != nil {
		switch {
		case errors.Is(err, idempotency.ErrKeyReused):
			return nil, errs.Mark(err, ErrIdempotencyKeyReused)
		case errors.Is(err, idempotency.ErrInFlight):
			return nil, errs.Mark(err, ErrIdempotencyInProgress)
		default:
			// Fail closed when the cache cannot answer: the alternative is
			// risking a double charge on a retried request.
			return nil, errs.Mark(err, ErrIdempotencyUnavailable)
		}
	}
	if rec == nil {
		return nil, nil
	}

	var result BookingIntentResult
	if err := json.Unmarshal(rec.Response, &result); err != nil {
		return nil, errs.Mark(err, ErrIdempotencyUnavailable)
	}
	result.IsReplayed = true
	return &result, nil
}

func (b *bookingUseCaseImpl) abortIdempotent(ctx context.Context, holderID, idempotencyKey uuid.UUID) {
	if err := b.idem.Abort(ctx, holderID, idempotencyKey); err != nil {
		slog.Warn("failed to release idempotency lock",
			"holder_id", holderID, "idempotency_key", idempotencyKey, "error", err)
	}
}

func (b *bookingUseCaseImpl) createNewIntent(
	ctx context.Context,
	req reqdto.CreateBookingIntentRequest,
	holder shared.Holder,
	idempotencyKey uuid.UUID,
	requestHash string,
) (*BookingIntentResult, error) {
	now := b.clock.Now()

	domainReq, err := req.ToDomain()
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidSchedule)
	}

	pol, err := b.selector.Select(now, domainReq.StartAt)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidSchedule)
	}

	sl, err := slot.NewSlot(domainReq.ExpertID, domainReq.StartAt, now)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidSchedule)
	}

	expert, err := b.lookupExpert(ctx, domainReq.ExpertID)
	if err != nil {
		return nil, err
	}

	res, err := b.reserveIfNeeded(ctx, sl, holder, pol, now)
	if err != nil {
		return nil, err
	}

	session, err := b.createProviderSession(ctx, sl, holder, expert, pol, res, idempotencyKey, now)
	if err != nil {
		// The hold must not outlive a booking that never got a checkout.
		b.releaseHold(ctx, res)
		return nil, err
	}

	if err := b.persistSession(ctx, sl, holder, pol, expert, res, session); err != nil {
		b.releaseHold(ctx, res)
		return nil, err
	}

	result := &BookingIntentResult{
		SessionID:      session.ID,
		CheckoutURL:    session.CheckoutURL,
		AllowedMethods: policy.MethodStrings(pol.Methods),
		AmountCents:    expert.HourlyRateCents,
		ExpiresAt:      session.ExpiresAt,
	}
	if res != nil {
		id := res.ID()
		result.ReservationID = &id
	}

	b.completeIdempotent(ctx, holder.ID, idempotencyKey, requestHash, result)
	b.notifyReservationPending(ctx, res)
	return result, nil
}

func (b *bookingUseCaseImpl) lookupExpert(ctx context.Context, expertID uuid.UUID) (*shared.ExpertSnapshot, error) {
	expert, err := b.directory.FindByID(ctx, expertID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrExpertNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if !expert.Active {
		return nil, ErrExpertInactive
	}
	return expert, nil
}

// reserveIfNeeded holds the slot when delayed methods are on offer. An
// occupied slot surfaces here, before any provider round trip.
func (b *bookingUseCaseImpl) reserveIfNeeded(
	ctx context.Context,
	sl slot.Slot,
	holder shared.Holder,
	pol policy.Policy,
	now time.Time,
) (*reservation.Reservation, error) {
	if !pol.NeedsReservation {
		return nil, nil
	}

	hold, err := reservation.NewHold(sl, slot.Holder{ID: holder.ID, Email: holder.Email}, now, pol.ReservationWindow)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidSchedule)
	}

	var reserved *reservation.Reservation
	err = b.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		r, err := tx.Reservations().TryReserve(ctx, tx.DB(), hold, now)
		if err != nil {
			return err
		}
		reserved = r
		return nil
	})
	if err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return nil, ErrSlotConflict
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return reserved, nil
}

func (b *bookingUseCaseImpl) createProviderSession(
	ctx context.Context,
	sl slot.Slot,
	holder shared.Holder,
	expert *shared.ExpertSnapshot,
	pol policy.Policy,
	res *reservation.Reservation,
	idempotencyKey uuid.UUID,
	now time.Time,
) (*shared.PaymentSession, error) {
	metadata := shared.SessionMetadata{
		ExpertID:    sl.ExpertID(),
		HolderID:    holder.ID,
		HolderEmail: holder.Email,
		StartAt:     sl.StartAt(),
	}
	if res != nil {
		id := res.ID()
		metadata.ReservationID = &id
	}

	session, err := b.gateway.CreateSession(ctx, shared.CreateSessionParams{
		AmountCents:    expert.HourlyRateCents,
		Methods:        policy.MethodStrings(pol.Methods),
		Description:    "Appointment with " + expert.DisplayName,
		ExpiresAt:      now.Add(pol.PaymentWindow),
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey.String(),
	})
	if err != nil {
		return nil, errs.Mark(err, ErrPaymentProviderFailed)
	}
	return session, nil
}

func (b *bookingUseCaseImpl) persistSession(
	ctx context.Context,
	sl slot.Slot,
	holder shared.Holder,
	pol policy.Policy,
	expert *shared.ExpertSnapshot,
	res *reservation.Reservation,
	session *shared.PaymentSession,
) error {
	err := b.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		rec := repository.SessionRecord{
			ID:          session.ID,
			ExpertID:    sl.ExpertID(),
			HolderID:    holder.ID,
			HolderEmail: holder.Email,
			StartAt:     sl.StartAt(),
			Methods:     policy.MethodStrings(pol.Methods),
			Status:      repository.SessionStatusOpen,
			AmountCents: expert.HourlyRateCents,
			ExpiresAt:   session.ExpiresAt,
		}
		if res != nil {
			id := res.ID()
			rec.ReservationID = &id
		}
		if err := tx.Sessions().Upsert(ctx, tx.DB(), rec); err != nil {
			return err
		}
		if res != nil {
			return tx.Reservations().AttachSession(ctx, tx.DB(), res.ID(), session.ID)
		}
		return nil
	})
	if err != nil {
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return nil
}

func (b *bookingUseCaseImpl) releaseHold(ctx context.Context, res *reservation.Reservation) {
	if res == nil {
		return
	}
	err := b.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		return tx.Reservations().Release(ctx, tx.DB(), res.ID())
	})
	if err != nil {
		// The reaper picks the hold up at expiry; losing the slot for the
		// reservation window is the worst case.
		slog.Warn("failed to release hold after booking failure",
			"reservation_id", res.ID(), "error", err)
	}
}

func (b *bookingUseCaseImpl) completeIdempotent(
	ctx context.Context,
	holderID, idempotencyKey uuid.UUID,
	requestHash string,
	result *BookingIntentResult,
) {
	body, err := json.Marshal(result)
	if err == nil {
		err = b.idem.Complete(ctx, holderID, idempotencyKey, requestHash, body)
	}
	if err != nil {
		// The booking went through; replay protection degrades to the lock TTL.
		slog.Warn("failed to store idempotency record",
			"holder_id", holderID, "idempotency_key", idempotencyKey, "error", err)
	}
}

func (b *bookingUseCaseImpl) notifyReservationPending(ctx context.Context, res *reservation.Reservation) {
	if res == nil {
		return
	}
	n := shared.Notification{
		Topic:       shared.TopicReservationPending,
		HolderID:    res.Holder().ID,
		HolderEmail: res.Holder().Email,
		ExpertID:    res.Slot().ExpertID(),
		StartAt:     res.Slot().StartAt(),
		Extra:       map[string]any{"expires_at": res.ExpiresAt()},
	}
	if err := b.notifier.Publish(ctx, n); err != nil {
		slog.Warn("failed to publish reservation notification", "error", err)
	}
}

func calculateRequestHash(req reqdto.CreateBookingIntentRequest) string {
	data, _ := json.Marshal(req)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
