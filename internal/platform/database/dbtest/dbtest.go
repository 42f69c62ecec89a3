// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"crmhooks/internal/platform/database"
)

func Open(t testing.TB) *database.DB {
	t.Helper()

	sqlDB, err := sql.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	goose.SetLogger(goose.NopLogger())

	db := database.New(sqlDB, database.DriverSQLite)
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}
