package management

import (
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("management",
	fx.Provide(func(cfg config.Config) *Client {
		return NewClient(cfg.ManagementURL)
	}),
)
