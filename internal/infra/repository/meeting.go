package repository

import (
	"context"
	"errors"
	"time"

	"expertbooking/internal/domain/meeting"
	"expertbooking/internal/domain/slot"
	"expertbooking/internal/infra"
	"expertbooking/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type MeetingRepository struct{}

func NewMeetingRepository() *MeetingRepository {
	return &MeetingRepository{}
}

const meetingColumns = `id, expert_id, holder_id, holder_email, start_at, end_at, payment_status, payment_session_id, created_at`

// CreateIfAbsent inserts the meeting keyed by its payment session id. A
// duplicate session id means the settlement was already applied and the
// existing meeting is returned; that is the exactly-once primitive the
// reconciler leans on. A slot collision (different session, same slot)
// surfaces as DUPLICATE_KEY for the caller's refund path.
func (r *MeetingRepository) CreateIfAbsent(ctx context.Context, tx db.DBTX, m *meeting.Meeting) (*meeting.Meeting, bool, error) {
	var insertedID uuid.UUID
	err := tx.QueryRow(ctx,
		`INSERT INTO meetings (id, expert_id, holder_id, holder_email, start_at, end_at, payment_status, payment_session_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (payment_session_id) DO NOTHING
		 RETURNING id`,
		m.ID(), m.Slot().ExpertID(), m.Holder().ID, m.Holder().Email,
		m.Slot().StartAt(), m.EndAt(), string(m.PaymentStatus()), m.PaymentSessionID(),
		m.CreatedAt(),
	).Scan(&insertedID)
	if err == nil {
		return m, true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		existing, ferr := r.FindBySession(ctx, tx, m.PaymentSessionID())
		if ferr != nil {
			return nil, false, ferr
		}
		return existing, false, nil
	}
	// The slot uniqueness backstop trips here when two sessions settle for
	// the same (expert, start_at).
	return nil, false, infra.WrapRepoErr("failed to insert meeting", err)
}

func (r *MeetingRepository) FindBySession(ctx context.Context, tx db.DBTX, sessionID string) (*meeting.Meeting, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE payment_session_id = $1`,
		sessionID)
	return scanMeeting(row)
}

func (r *MeetingRepository) FindBySlot(ctx context.Context, tx db.DBTX, expertID uuid.UUID, startAt time.Time) (*meeting.Meeting, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE expert_id = $1 AND start_at = $2`,
		expertID, startAt)
	return scanMeeting(row)
}

// MarkRefundedBySession flips payment_status; the meeting row stays for the
// historical record.
func (r *MeetingRepository) MarkRefundedBySession(ctx context.Context, tx db.DBTX, sessionID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE meetings SET payment_status = 'refunded', updated_at = now()
		 WHERE payment_session_id = $1 AND payment_status = 'paid'`,
		sessionID)
	if err != nil {
		return infra.WrapRepoErr("failed to mark meeting refunded", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("no paid meeting for session", nil, infra.KindNotFound)
	}
	return nil
}

func scanMeeting(row pgx.Row) (*meeting.Meeting, error) {
	var (
		id, expertID, holderID  uuid.UUID
		holderEmail, payStatus  string
		sessionID               string
		startAt, endAt, created time.Time
	)
	err := row.Scan(&id, &expertID, &holderID, &holderEmail, &startAt, &endAt, &payStatus, &sessionID, &created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("meeting not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan meeting", err)
	}

	return meeting.Reconstruct(
		id,
		slot.ReconstructSlot(expertID, startAt),
		slot.Holder{ID: holderID, Email: holderEmail},
		endAt,
		meeting.PaymentStatus(payStatus),
		sessionID,
		created,
	), nil
}
