package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
)

// BillingModule adds the hot-reloading billing configuration used by the
// worker. The gateway does not need it.
var BillingModule = fx.Module("billing_config",
	fx.Provide(NewBillingConfigHolder),
)
