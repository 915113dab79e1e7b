package repository

import (
	"context"
	"errors"
	"time"

	"expertbooking/internal/domain/reservation"
	"expertbooking/internal/domain/slot"
	"expertbooking/internal/infra"
	"expertbooking/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReleasedHold is what the reaper needs from a deleted row to notify the
// affected parties.
type ReleasedHold struct {
	ID          uuid.UUID
	ExpertID    uuid.UUID
	HolderID    uuid.UUID
	HolderEmail string
	StartAt     time.Time
}

type ReservationRepository struct{}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{}
}

const reservationColumns = `id, expert_id, holder_id, holder_email, start_at, status, payment_session_id, expires_at, created_at, updated_at`

// TryReserve atomically inserts a hold for the reservation's slot. A dead
// row (held past its expiry) is removed first in the same transaction, so
// expiry takes effect even between reaper runs. If a live row survives the
// insert race: the same holder gets it back (retried bookings are
// idempotent), a different holder gets DUPLICATE_KEY.
func (r *ReservationRepository) TryReserve(ctx context.Context, tx db.DBTX, res *reservation.Reservation, now time.Time) (*reservation.Reservation, error) {
	_, err := tx.Exec(ctx,
		`DELETE FROM slot_reservations
		 WHERE expert_id = $1 AND start_at = $2 AND status = 'held' AND expires_at <= $3`,
		res.Slot().ExpertID(), res.Slot().StartAt(), now)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to clear dead reservation", err)
	}

	var insertedID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO slot_reservations (id, expert_id, holder_id, holder_email, start_at, status, payment_session_id, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (expert_id, start_at) DO NOTHING
		 RETURNING id`,
		res.ID(), res.Slot().ExpertID(), res.Holder().ID, res.Holder().Email,
		res.Slot().StartAt(), res.Status().String(), res.PaymentSessionID(),
		res.ExpiresAt(), res.CreatedAt(),
	).Scan(&insertedID)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, infra.WrapRepoErr("failed to insert reservation", err)
	}

	// Insert lost to an existing row; decide by holder.
	existing, err := r.findBySlot(ctx, tx, res.Slot().ExpertID(), res.Slot().StartAt())
	if err != nil {
		return nil, err
	}
	if existing.HeldBy(res.Holder()) {
		return existing, nil
	}
	return nil, infra.WrapRepoErr("slot already reserved by another holder", nil, infra.KindDuplicateKey)
}

// ConfirmBySession settles the hold behind a paid session: the row stops
// expiring and keeps blocking the slot alongside the meeting. Zero rows is
// fine: instant-method sessions never had a hold.
func (r *ReservationRepository) ConfirmBySession(ctx context.Context, tx db.DBTX, sessionID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE slot_reservations SET status = 'confirmed', updated_at = now()
		 WHERE payment_session_id = $1 AND status = 'held'`, sessionID)
	if err != nil {
		return infra.WrapRepoErr("failed to confirm reservation", err)
	}
	return nil
}

func (r *ReservationRepository) Release(ctx context.Context, tx db.DBTX, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM slot_reservations WHERE id = $1`, id)
	if err != nil {
		return infra.WrapRepoErr("failed to release reservation", err)
	}
	return nil
}

// ReleaseBySession deletes whatever reservation the session holds. Zero rows
// is fine: instant-method sessions never had one.
func (r *ReservationRepository) ReleaseBySession(ctx context.Context, tx db.DBTX, sessionID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM slot_reservations WHERE payment_session_id = $1`, sessionID)
	if err != nil {
		return infra.WrapRepoErr("failed to release reservation by session", err)
	}
	return nil
}

// AttachSession points the hold at its payment session. A retried booking
// under a fresh idempotency key re-points the same hold at the new session;
// the superseded session settles into the refund path if it ever pays.
func (r *ReservationRepository) AttachSession(ctx context.Context, tx db.DBTX, id uuid.UUID, sessionID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE slot_reservations SET payment_session_id = $2, updated_at = now() WHERE id = $1`,
		id, sessionID)
	if err != nil {
		return infra.WrapRepoErr("failed to attach session to reservation", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	return nil
}

// ReleaseExpired is the reaper sweep: a conditional bulk delete that only
// removes rows still held and still expired at delete time, so it cannot
// race a last-moment settlement that confirmed the hold.
func (r *ReservationRepository) ReleaseExpired(ctx context.Context, tx db.DBTX, now time.Time) ([]ReleasedHold, error) {
	rows, err := tx.Query(ctx,
		`DELETE FROM slot_reservations
		 WHERE status = 'held' AND expires_at < $1
		 RETURNING id, expert_id, holder_id, holder_email, start_at`, now)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to release expired reservations", err)
	}
	defer rows.Close()

	var released []ReleasedHold
	for rows.Next() {
		var h ReleasedHold
		if err := rows.Scan(&h.ID, &h.ExpertID, &h.HolderID, &h.HolderEmail, &h.StartAt); err != nil {
			return nil, infra.WrapRepoErr("failed to scan released reservation", err)
		}
		released = append(released, h)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read released reservations", err)
	}
	return released, nil
}

func (r *ReservationRepository) FindLiveBySlot(ctx context.Context, tx db.DBTX, expertID uuid.UUID, startAt, now time.Time) (*reservation.Reservation, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM slot_reservations
		 WHERE expert_id = $1 AND start_at = $2
		   AND (status = 'confirmed' OR expires_at > $3)`,
		expertID, startAt, now)
	return scanReservation(row)
}

func (r *ReservationRepository) FindBySession(ctx context.Context, tx db.DBTX, sessionID string) (*reservation.Reservation, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM slot_reservations WHERE payment_session_id = $1`,
		sessionID)
	return scanReservation(row)
}

func (r *ReservationRepository) findBySlot(ctx context.Context, tx db.DBTX, expertID uuid.UUID, startAt time.Time) (*reservation.Reservation, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM slot_reservations
		 WHERE expert_id = $1 AND start_at = $2`,
		expertID, startAt)
	return scanReservation(row)
}

func scanReservation(row pgx.Row) (*reservation.Reservation, error) {
	var (
		id, expertID, holderID               uuid.UUID
		holderEmail, status                  string
		sessionID                            *string
		startAt, expiresAt, created, updated time.Time
	)
	err := row.Scan(&id, &expertID, &holderID, &holderEmail, &startAt, &status, &sessionID, &expiresAt, &created, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("reservation not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan reservation", err)
	}

	return reservation.Reconstruct(
		id,
		slot.ReconstructSlot(expertID, startAt),
		slot.Holder{ID: holderID, Email: holderEmail},
		reservation.Status(status),
		sessionID,
		expiresAt, created, updated,
	), nil
}
