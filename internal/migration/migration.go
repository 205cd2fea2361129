package migration

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Up applies all pending schema migrations. A database that is already
// up to date is not an error. The underlying *sql.DB is shared with gorm,
// so it must not be closed here.
func Up(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}

	var driver database.Driver
	switch cfg.DBType {
	case "mysql":
		driver, err = migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	case "postgres":
		driver, err = migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	case "sqlite":
		driver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	default:
		return errors.New("unsupported database type for migrations")
	}
	if err != nil {
		return err
	}

	source, err := iofs.New(embeddedMigrations, migrationsDir)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, cfg.DBName, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema up to date")
			return nil
		}
		return err
	}

	log.Info("schema migrations applied")
	return nil
}
