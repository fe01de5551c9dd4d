package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDB opens an isolated in-memory database. A single connection is
// enforced so every statement sees the same memory database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
