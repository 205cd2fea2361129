package quota

import (
	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/management"
	"go.uber.org/fx"
)

var Module = fx.Module("quota",
	fx.Provide(func(mgmt *management.Client, clk clock.Clock) *Checker {
		return NewChecker(mgmt, clk)
	}),
)
