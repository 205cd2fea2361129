package stripe

import (
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"github.com/sanarberkebayram/monetizeit/internal/payment"
	"go.uber.org/fx"
)

var Module = fx.Module("stripe",
	fx.Provide(func(cfg config.Config) payment.Processor {
		return New(cfg.StripeAPIKey)
	}),
)
