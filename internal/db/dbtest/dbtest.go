// Package dbtest opens a migrated throwaway SQLite database for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/bonds-app/bonds/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func New(t *testing.T) *sqlx.DB {
	t.Helper()

	// busy_timeout makes concurrent write transactions wait for the lock
	// instead of failing with SQLITE_BUSY.
	path := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	database, err := db.Init("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	return database
}
