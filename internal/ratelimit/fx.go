package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(func(client *redis.Client, log *zap.Logger) *Limiter {
		return NewLimiter(client, log)
	}),
)
