package handlers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/hivehq/hive-api/internal/database/migrations"
	"github.com/hivehq/hive-api/internal/http/mw"
	"github.com/hivehq/hive-api/internal/recordstore"
	"github.com/hivehq/hive-api/internal/repository"
)

// setupRepos creates repositories over an in-memory database.
func setupRepos(t *testing.T) *repository.Repositories {
	repos, _ := setupStore(t)
	return repos
}

// setupStore creates repositories plus the backing record store client.
func setupStore(t *testing.T) (*repository.Repositories, recordstore.Client) {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	client := recordstore.NewSQLiteStore(db)
	return repository.New(client, db), client
}

// authedCtx returns a context carrying user claims, as the auth middleware
// would produce.
func authedCtx(userID string) context.Context {
	return context.WithValue(context.Background(), mw.UserClaimsKey, &mw.UserClaims{UserID: userID})
}

// assertStatus checks that a handler error carries the expected HTTP status.
func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected status %d error, got nil", want)
	}
	statusErr, ok := err.(huma.StatusError)
	if !ok {
		t.Fatalf("expected status error, got %T: %v", err, err)
	}
	if statusErr.GetStatus() != want {
		t.Errorf("expected status %d, got %d", want, statusErr.GetStatus())
	}
}
