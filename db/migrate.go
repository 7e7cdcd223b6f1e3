package db

import (
	"context"
	"fmt"

	"github.com/finagent/finance-agent/db/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrate brings the schema up to date and returns the applied group, if any.
func Migrate(ctx context.Context, dbConn *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return group, nil
}
