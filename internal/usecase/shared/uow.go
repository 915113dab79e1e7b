package shared

import (
	"context"
	"time"

	"expertbooking/internal/domain/meeting"
	"expertbooking/internal/domain/reservation"
	"expertbooking/internal/infra/db"
	"expertbooking/internal/infra/repository"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: Full transaction for write operations with retry logic
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// WithDB: Single query operations using implicit transactions
	WithDB(ctx context.Context, fn func(ctx context.Context, dbtx db.DBTX) error) error
}

type Tx interface {
	Reservations() ReservationRepository
	Meetings() MeetingRepository
	Sessions() SessionRepository
	WebhookEvents() WebhookEventRepository
	DB() db.DBTX
}

type ReservationRepository interface {
	TryReserve(ctx context.Context, tx db.DBTX, res *reservation.Reservation, now time.Time) (*reservation.Reservation, error)
	ConfirmBySession(ctx context.Context, tx db.DBTX, sessionID string) error
	Release(ctx context.Context, tx db.DBTX, id uuid.UUID) error
	ReleaseBySession(ctx context.Context, tx db.DBTX, sessionID string) error
	AttachSession(ctx context.Context, tx db.DBTX, id uuid.UUID, sessionID string) error
	ReleaseExpired(ctx context.Context, tx db.DBTX, now time.Time) ([]repository.ReleasedHold, error)
	FindLiveBySlot(ctx context.Context, tx db.DBTX, expertID uuid.UUID, startAt, now time.Time) (*reservation.Reservation, error)
	FindBySession(ctx context.Context, tx db.DBTX, sessionID string) (*reservation.Reservation, error)
}

type MeetingRepository interface {
	CreateIfAbsent(ctx context.Context, tx db.DBTX, m *meeting.Meeting) (*meeting.Meeting, bool, error)
	FindBySession(ctx context.Context, tx db.DBTX, sessionID string) (*meeting.Meeting, error)
	FindBySlot(ctx context.Context, tx db.DBTX, expertID uuid.UUID, startAt time.Time) (*meeting.Meeting, error)
	MarkRefundedBySession(ctx context.Context, tx db.DBTX, sessionID string) error
}

type SessionRepository interface {
	Upsert(ctx context.Context, tx db.DBTX, rec repository.SessionRecord) error
	UpdateStatus(ctx context.Context, tx db.DBTX, sessionID string, status repository.SessionStatus) error
	FindByID(ctx context.Context, tx db.DBTX, sessionID string) (*repository.SessionRecord, error)
}

type WebhookEventRepository interface {
	Record(ctx context.Context, tx db.DBTX, provider, eventID, eventType string, payload []byte, signatureValid bool) (uuid.UUID, error)
	MarkProcessed(ctx context.Context, tx db.DBTX, id uuid.UUID) error
	MarkFailed(ctx context.Context, tx db.DBTX, id uuid.UUID, reason string) error
}

// ExpertDirectory is the read-only scheduling/profile lookup consulted
// before reserving. Implementations may cache.
type ExpertDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ExpertSnapshot, error)
}

// NotificationPublisher delivers fire-and-forget notifications; failures
// must never block a state transition, so callers log and move on.
type NotificationPublisher interface {
	Publish(ctx context.Context, n Notification) error
}
