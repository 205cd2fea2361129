package migration

import (
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(run),
)

func run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	return Up(conn, cfg, log)
}
