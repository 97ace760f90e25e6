package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var itemsTable = Table{Schema: "tk", Name: "items"}

// createTestStore opens a sqlite store under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createItemsTable creates tk.items with a JSON column for composites.
func createItemsTable(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, "tk"))
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE "tk"."items" (
			idx  INTEGER PRIMARY KEY,
			name TEXT,
			qty  INTEGER,
			meta JSON
		)
	`)
	require.NoError(t, err)
}

// countRows returns the number of rows in tk.items.
func countRows(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM "tk"."items"`).Scan(&n))
	return n
}
