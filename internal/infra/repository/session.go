package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"expertbooking/internal/infra"
	"expertbooking/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusPaid     SessionStatus = "paid"
	SessionStatusFailed   SessionStatus = "failed"
	SessionStatusRefunded SessionStatus = "refunded"
	SessionStatusExpired  SessionStatus = "expired"
)

// SessionRecord mirrors a provider payment session locally. The metadata
// columns (expert, holder, start) let the reconciler rebuild a booking from
// a bare webhook payload when delivery order works against it.
type SessionRecord struct {
	ID            string
	ExpertID      uuid.UUID
	HolderID      uuid.UUID
	HolderEmail   string
	StartAt       time.Time
	Methods       []string
	Status        SessionStatus
	AmountCents   int64
	ReservationID *uuid.UUID
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type SessionRepository struct{}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

// Upsert records the session. The created webhook and the booking path both
// write this row; last writer refreshing status is fine because status only
// moves forward through UpdateStatus guards.
func (r *SessionRepository) Upsert(ctx context.Context, tx db.DBTX, rec SessionRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO payment_sessions (id, expert_id, holder_id, holder_email, start_at, methods, status, amount_cents, reservation_id, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		 ON CONFLICT (id) DO UPDATE
		 SET reservation_id = COALESCE(payment_sessions.reservation_id, EXCLUDED.reservation_id),
		     updated_at = now()`,
		rec.ID, rec.ExpertID, rec.HolderID, rec.HolderEmail, rec.StartAt,
		strings.Join(rec.Methods, ","), string(rec.Status), rec.AmountCents,
		rec.ReservationID, rec.ExpiresAt)
	if err != nil {
		return infra.WrapRepoErr("failed to upsert payment session", err)
	}
	return nil
}

// UpdateStatus moves the mirror forward. Terminal states win: once a session
// is paid/refunded/failed a stale 'open' update is a no-op.
func (r *SessionRepository) UpdateStatus(ctx context.Context, tx db.DBTX, sessionID string, status SessionStatus) error {
	_, err := tx.Exec(ctx,
		`UPDATE payment_sessions SET status = $2, updated_at = now()
		 WHERE id = $1
		   AND NOT (status IN ('paid', 'refunded', 'failed') AND $2 = 'open')
		   AND NOT (status = 'refunded' AND $2 = 'paid')`,
		sessionID, string(status))
	if err != nil {
		return infra.WrapRepoErr("failed to update payment session status", err)
	}
	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, tx db.DBTX, sessionID string) (*SessionRecord, error) {
	row := tx.QueryRow(ctx,
		`SELECT id, expert_id, holder_id, holder_email, start_at, methods, status, amount_cents, reservation_id, expires_at, created_at, updated_at
		 FROM payment_sessions WHERE id = $1`, sessionID)

	var (
		rec     SessionRecord
		methods string
		status  string
	)
	err := row.Scan(&rec.ID, &rec.ExpertID, &rec.HolderID, &rec.HolderEmail, &rec.StartAt,
		&methods, &status, &rec.AmountCents, &rec.ReservationID, &rec.ExpiresAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("payment session not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan payment session", err)
	}

	if methods != "" {
		rec.Methods = strings.Split(methods, ",")
	}
	rec.Status = SessionStatus(status)
	return &rec, nil
}
