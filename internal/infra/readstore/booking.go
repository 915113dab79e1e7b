package readstore

import (
	"context"
	"errors"
	"strings"

	"expertbooking/internal/infra"
	"expertbooking/internal/infra/db"
	"expertbooking/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BookingReadStore struct {
	db db.DBTX
}

func NewBookingReadStore(db db.DBTX) *BookingReadStore {
	return &BookingReadStore{db: db}
}

func (r *BookingReadStore) FindMeetingByID(ctx context.Context, id uuid.UUID) (*queries.MeetingView, error) {
	row := r.db.QueryRow(ctx,
		`SELECT m.id, m.expert_id, e.display_name, m.holder_id, m.start_at, m.end_at,
		        m.payment_status, m.payment_session_id, m.created_at
		 FROM meetings m
		 JOIN experts e ON e.id = m.expert_id
		 WHERE m.id = $1`, id)

	view, err := scanMeetingView(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("meeting not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find meeting by ID", err)
	}
	return view, nil
}

func (r *BookingReadStore) FindMeetingsByHolder(ctx context.Context, holderID uuid.UUID, limit int32) ([]*queries.MeetingView, error) {
	rows, err := r.db.Query(ctx,
		`SELECT m.id, m.expert_id, e.display_name, m.holder_id, m.start_at, m.end_at,
		        m.payment_status, m.payment_session_id, m.created_at
		 FROM meetings m
		 JOIN experts e ON e.id = m.expert_id
		 WHERE m.holder_id = $1
		 ORDER BY m.start_at DESC
		 LIMIT $2`, holderID, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list meetings by holder", err)
	}
	defer rows.Close()

	var views []*queries.MeetingView
	for rows.Next() {
		view, err := scanMeetingView(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan meeting row", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate meeting rows", err)
	}
	return views, nil
}

// FindIntentStatus joins the session mirror with whichever of the hold and
// the meeting exist. Scoped by holder so a session id alone grants nothing.
func (r *BookingReadStore) FindIntentStatus(ctx context.Context, holderID uuid.UUID, sessionID string) (*queries.IntentStatusView, error) {
	row := r.db.QueryRow(ctx,
		`SELECT s.id, s.status, s.methods, s.amount_cents, s.expires_at,
		        sr.id, sr.status, sr.expires_at, m.id
		 FROM payment_sessions s
		 LEFT JOIN slot_reservations sr ON sr.payment_session_id = s.id
		 LEFT JOIN meetings m ON m.payment_session_id = s.id
		 WHERE s.id = $1 AND s.holder_id = $2`, sessionID, holderID)

	var (
		view    queries.IntentStatusView
		methods string
	)
	err := row.Scan(&view.SessionID, &view.Status, &methods, &view.AmountCents, &view.ExpiresAt,
		&view.ReservationID, &view.ReservationStatus, &view.ReservationExpiresAt, &view.MeetingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("booking intent not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find intent status", err)
	}

	if methods != "" {
		view.Methods = strings.Split(methods, ",")
	}
	return &view, nil
}

func scanMeetingView(row pgx.Row) (*queries.MeetingView, error) {
	var view queries.MeetingView
	err := row.Scan(&view.ID, &view.ExpertID, &view.ExpertName, &view.HolderID,
		&view.StartAt, &view.EndAt, &view.PaymentStatus, &view.PaymentSessionID, &view.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &view, nil
}
