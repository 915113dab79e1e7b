package components

import (
	"context"

	"expertbooking/internal/pkg/config"
	"expertbooking/internal/usecase/commands"
	"expertbooking/internal/worker"

	"go.uber.org/fx"
)

var WorkerModule = fx.Module("worker",
	fx.Provide(
		NewReaperWorker,
	),
	fx.Invoke(StartReaperWorker),
)

func NewReaperWorker(reaperCommands commands.ReaperCommands, cfg config.Config) *worker.Reaper {
	return worker.NewReaper(reaperCommands, cfg.Reaper)
}

func StartReaperWorker(lc fx.Lifecycle, reaper *worker.Reaper) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			reaper.Start(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			reaper.Stop()
			return nil
		},
	})
}
