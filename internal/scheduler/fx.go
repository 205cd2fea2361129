package scheduler

import (
	"context"

	"github.com/sanarberkebayram/monetizeit/internal/billing"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(func(engine *billing.Engine, holder *config.BillingConfigHolder, log *zap.Logger) *Scheduler {
		return New(engine, holder, log)
	}),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, s *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				defer close(done)
				s.RunForever(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
