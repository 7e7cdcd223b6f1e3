package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
)

const tracedServiceName = "finance-agent"

var supportedSchemes = []string{"postgres://", "postgresql://", "unix://"}

func supported(dsn string) bool {
	for _, scheme := range supportedSchemes {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// Open returns a postgres backed bun.DB sized by the pool settings in config.
// Queries are traced through Datadog when an agent url is configured.
func Open(config *service.Config) (*bun.DB, error) {
	if !supported(config.DatabaseUri) {
		return nil, fmt.Errorf("unsupported database uri, expected one of %s", strings.Join(supportedSchemes, ", "))
	}

	connector := pgdriver.NewConnector(pgdriver.WithDSN(config.DatabaseUri))
	var sqlDB *sql.DB
	if config.DatadogAgentUrl != "" {
		sqltrace.Register("postgres", pgdriver.Driver{}, sqltrace.WithServiceName(tracedServiceName))
		sqlDB = sqltrace.OpenDB(connector)
	} else {
		sqlDB = sql.OpenDB(connector)
	}
	sqlDB.SetMaxOpenConns(config.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(config.DatabaseMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(config.DatabaseConnMaxLifetime) * time.Second)

	dbConn := bun.NewDB(sqlDB, pgdialect.New())
	// BUNDEBUG=1 logs failed queries, BUNDEBUG=2 logs all of them
	dbConn.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv("BUNDEBUG"),
	))
	return dbConn, nil
}

// WaitReady pings the database until it answers, giving up after maxWait.
func WaitReady(ctx context.Context, dbConn *bun.DB, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxWait
	err := backoff.Retry(func() error {
		return dbConn.PingContext(ctx)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}
