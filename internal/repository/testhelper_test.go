package repository

import (
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hivehq/hive-api/internal/database/migrations"
	"github.com/hivehq/hive-api/internal/recordstore"
)

// setupTestDB creates an in-memory database with migrations applied and a
// record store client over it.
func setupTestDB(t *testing.T) (*sql.DB, recordstore.Client) {
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

	return db, recordstore.NewSQLiteStore(db)
}
