package migrations

import (
	"context"

	"github.com/finagent/finance-agent/db/models"
	"github.com/uptrace/bun"
)

/* Since this init reflects the latest model fields when run on a fresh db,
make sure subsequent migrations that add/remove columns use IfNotExists/IfExists.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.User)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().
			Model((*models.Transaction)(nil)).
			ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateIndex().
			Model((*models.Transaction)(nil)).
			Index("index_transactions_on_user_id_created_at").
			Column("user_id", "created_at").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
		// identity lookups go through the jsonb keys
		for _, service := range []string{"telegram", "whatsapp"} {
			sql := "CREATE INDEX IF NOT EXISTS index_users_on_" + service + " ON users ((services_authenticated->>'" + service + "'))"
			if _, err := db.ExecContext(ctx, sql); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewDropTable().Model((*models.Transaction)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		_, err := db.NewDropTable().Model((*models.User)(nil)).IfExists().Exec(ctx)
		return err
	})
}
