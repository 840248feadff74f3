package db

import (
	"embed"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies all pending migrations. goose needs database/sql, so a
// short-lived pgx stdlib handle is opened just for this.
func Migrate(dsn string, log *slog.Logger) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	before, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return err
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return err
	}
	after, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return err
	}
	log.Info("migrations applied", "from_version", before, "to_version", after)
	return nil
}
