package usage

import (
	"context"
	"fmt"
	"os"

	redis "github.com/redis/go-redis/v9"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"github.com/sanarberkebayram/monetizeit/internal/observability/metrics"
	"github.com/sanarberkebayram/monetizeit/internal/usage/repository"
	"github.com/sanarberkebayram/monetizeit/internal/usage/stream"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// EmitterModule wires the gateway side of the usage stream.
var EmitterModule = fx.Module("usage_emitter",
	fx.Provide(func(client *redis.Client, cfg config.Config) *stream.Emitter {
		return stream.NewEmitter(client, cfg.UsageStream)
	}),
)

// ConsumerModule wires the worker side: repository, consumer group, and
// the drain loop tied to the app lifecycle.
var ConsumerModule = fx.Module("usage_consumer",
	fx.Provide(repository.New),
	fx.Provide(newConsumer),
	fx.Invoke(runConsumer),
)

func newConsumer(client *redis.Client, repo *repository.Repository, cfg config.Config, log *zap.Logger, m *metrics.Metrics) *stream.Consumer {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "worker"
	}
	consumerName := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return stream.NewConsumer(client, repo, cfg.UsageStream, cfg.ConsumerGroup, consumerName, log, m)
}

func runConsumer(lc fx.Lifecycle, consumer *stream.Consumer, log *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := consumer.EnsureGroup(ctx); err != nil {
				return err
			}
			go func() {
				defer close(done)
				if err := consumer.Run(runCtx); err != nil && runCtx.Err() == nil {
					log.Error("usage consumer stopped", zap.Error(err))
				}
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
