package apikey

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/sanarberkebayram/monetizeit/internal/apikey/service"
	"github.com/sanarberkebayram/monetizeit/internal/management"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("apikey",
	fx.Provide(func(client *redis.Client, mgmt *management.Client, log *zap.Logger) *service.Resolver {
		return service.NewResolver(service.NewRedisKeyCache(client), mgmt, log)
	}),
)
