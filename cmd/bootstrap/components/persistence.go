package components

import (
	"expertbooking/internal/infra/db"
	"expertbooking/internal/infra/directory"
	"expertbooking/internal/infra/idempotency"
	"expertbooking/internal/infra/readstore"
	"expertbooking/internal/infra/uow"
	"expertbooking/internal/pkg/config"
	"expertbooking/internal/usecase/queries"
	"expertbooking/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewDBTX,
		uow.NewPostgresUoW,
		fx.Annotate(
			readstore.NewBookingReadStore,
			fx.As(new(queries.BookingViewRepo)),
		),
		fx.Annotate(
			NewExpertDirectory,
			fx.As(new(shared.ExpertDirectory)),
		),
		fx.Annotate(
			NewIdempotencyCache,
			fx.As(new(shared.IdempotencyCache)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) db.DBTX {
	return pool
}

// NewExpertDirectory wraps the pg lookup with a short-lived cache; the
// booking path hits it on every intent.
func NewExpertDirectory(dbtx db.DBTX, cfg config.Config) *directory.Cached {
	return directory.NewCached(directory.NewPgDirectory(dbtx), cfg.Booking.AvailabilityCacheTTL)
}

func NewIdempotencyCache(client *redis.Client, cfg config.Config) *idempotency.Cache {
	return idempotency.NewCache(client, cfg.Booking.IdempotencyTTL)
}
