package service

import (
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hivehq/hive-api/internal/database/migrations"
	"github.com/hivehq/hive-api/internal/recordstore"
	"github.com/hivehq/hive-api/internal/repository"
)

// setupTest creates repositories over an in-memory database.
func setupTest(t *testing.T) (*repository.Repositories, recordstore.Client) {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Each libsql connection gets its own in-memory database; keep the pool
	// at one connection so concurrent writers see the migrated schema.
	db.SetMaxOpenConns(1)

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	client := recordstore.NewSQLiteStore(db)
	return repository.New(client, db), client
}
