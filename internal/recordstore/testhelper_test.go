package recordstore

import (
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hivehq/hive-api/internal/database/migrations"
)

// setupTestStore creates a SQLiteStore over an in-memory database with
// migrations applied. The connection is closed when the test completes.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewSQLiteStore(db)
}
