package worker

import (
	"context"
	"log/slog"
	"time"

	"expertbooking/internal/pkg/config"
	"expertbooking/internal/usecase/commands"
)

// Reaper sweeps expired holds on a fixed interval. The booking path already
// treats expired rows as dead, so the cadence only bounds how long a dead
// row lingers and how late the expiry notification goes out.
type Reaper struct {
	reaperCommands commands.ReaperCommands
	interval       time.Duration
	done           chan struct{}
}

func NewReaper(reaperCommands commands.ReaperCommands, cfg config.ReaperConfig) *Reaper {
	return &Reaper{
		reaperCommands: reaperCommands,
		interval:       cfg.Interval,
		done:           make(chan struct{}),
	}
}

func (r *Reaper) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Reaper) Stop() {
	close(r.done)
}

func (r *Reaper) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("reservation reaper started", "interval", r.interval)
	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-r.done:
			slog.Info("reservation reaper stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	released, err := r.reaperCommands.ReleaseExpired(sweepCtx)
	if err != nil {
		slog.Error("reaper sweep failed", "error", err)
		return
	}
	if released > 0 {
		slog.Info("reaper released expired holds", "count", released)
	}
}
