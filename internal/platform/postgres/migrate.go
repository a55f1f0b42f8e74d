package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded goose migrations through a database/sql handle sharing the pool.
// A nil logger keeps goose's default stdout logger.
func (p *Provider) Migrate(ctx context.Context, logger goose.Logger) error {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	if logger != nil {
		goose.SetLogger(logger)
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("postgres: run migrations: %w", err)
	}
	return nil
}
