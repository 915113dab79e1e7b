package commands

import (
	"context"
	"log/slog"

	"expertbooking/internal/infra/repository"
	"expertbooking/internal/pkg/clock"
	"expertbooking/internal/pkg/errs"
	"expertbooking/internal/usecase/shared"
)

type ReaperCommands interface {
	ReleaseExpired(ctx context.Context) (int64, error)
}

type reaperUseCaseImpl struct {
	uow      shared.UnitOfWork
	notifier shared.NotificationPublisher
	clock    clock.Clock
}

func NewReaperUseCase(
	uow shared.UnitOfWork,
	notifier shared.NotificationPublisher,
	clock clock.Clock,
) ReaperCommands {
	return &reaperUseCaseImpl{
		uow:      uow,
		notifier: notifier,
		clock:    clock,
	}
}

// ReleaseExpired deletes holds past their expiry in one sweep. Expired rows
// are already invisible to the booking path, so the sweep only reclaims
// storage and tells the holders their slot is gone.
func (r *reaperUseCaseImpl) ReleaseExpired(ctx context.Context) (int64, error) {
	var released []repository.ReleasedHold
	err := r.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		holds, err := tx.Reservations().ReleaseExpired(ctx, tx.DB(), r.clock.Now())
		if err != nil {
			return err
		}
		released = holds
		return nil
	})
	if err != nil {
		return 0, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	for _, h := range released {
		n := shared.Notification{
			Topic:       shared.TopicReservationReleased,
			HolderID:    h.HolderID,
			HolderEmail: h.HolderEmail,
			ExpertID:    h.ExpertID,
			StartAt:     h.StartAt,
			Extra:       map[string]any{"reason": "reservation_expired"},
		}
		if err := r.notifier.Publish(ctx, n); err != nil {
			slog.Warn("failed to publish expiry notification",
				"reservation_id", h.ID, "error", err)
		}
	}
	return int64(len(released)), nil
}
