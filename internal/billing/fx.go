package billing

import (
	"github.com/sanarberkebayram/monetizeit/internal/usage/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(
		func(repo *repository.Repository) UsageReader { return repo },
		NewEngine,
	),
)
