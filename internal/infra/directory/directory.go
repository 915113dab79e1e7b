package directory

import (
	"context"
	"errors"
	"time"

	"expertbooking/internal/infra"
	"expertbooking/internal/infra/db"
	"expertbooking/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	gocache "github.com/patrickmn/go-cache"
)

// PgDirectory reads expert profiles from the experts table.
type PgDirectory struct {
	db db.DBTX
}

func NewPgDirectory(dbtx db.DBTX) *PgDirectory {
	return &PgDirectory{db: dbtx}
}

func (d *PgDirectory) FindByID(ctx context.Context, id uuid.UUID) (*shared.ExpertSnapshot, error) {
	row := d.db.QueryRow(ctx,
		`SELECT id, display_name, hourly_rate_cents, is_active FROM experts WHERE id = $1`, id)

	var snap shared.ExpertSnapshot
	err := row.Scan(&snap.ID, &snap.DisplayName, &snap.HourlyRateCents, &snap.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("expert not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find expert", err)
	}
	return &snap, nil
}

// Cached decorates an ExpertDirectory with a short-TTL in-process cache.
// Expert profiles change rarely relative to booking traffic and a slightly
// stale snapshot only affects display data and rates, never slot conflicts.
type Cached struct {
	inner shared.ExpertDirectory
	cache *gocache.Cache
}

func NewCached(inner shared.ExpertDirectory, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *Cached) FindByID(ctx context.Context, id uuid.UUID) (*shared.ExpertSnapshot, error) {
	if v, ok := c.cache.Get(id.String()); ok {
		snap := v.(shared.ExpertSnapshot)
		return &snap, nil
	}

	snap, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(id.String(), *snap)
	return snap, nil
}
