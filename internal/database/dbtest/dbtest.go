// Package dbtest opens an in-memory SQLite store with the full schema for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"mailtriage/internal/database"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewStore returns a store backed by a fresh in-memory database
func NewStore(t testing.TB) *database.Store {
	t.Helper()

	db, err := sqlx.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive for the test
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	client := database.NewClient(db, 5*time.Second)
	require.NoError(t, database.CreateTables(context.Background(), client))

	store, err := database.NewStore(client)
	require.NoError(t, err)
	return store
}
