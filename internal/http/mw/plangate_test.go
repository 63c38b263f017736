package mw

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/hivehq/hive-api/internal/database/migrations"
	"github.com/hivehq/hive-api/internal/recordstore"
	"github.com/hivehq/hive-api/internal/repository"
	"github.com/hivehq/hive-api/internal/service"
)

func setupBilling(t *testing.T) *service.BillingService {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repos := repository.New(recordstore.NewSQLiteStore(db), db)
	return service.NewBillingService(repos.Subscriptions, slog.Default())
}

func claimedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/companies/rec1/runs", nil)
	ctx := context.WithValue(req.Context(), UserClaimsKey, &UserClaims{UserID: userID})
	return req.WithContext(ctx)
}

func TestRequirePlanBlocksWithoutSubscription(t *testing.T) {
	billing := setupBilling(t)

	handler := RequirePlan(billing)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, claimedRequest("user-1"))

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", rec.Code)
	}
}

func TestRequirePlanAllowsActiveSubscription(t *testing.T) {
	billing := setupBilling(t)

	sub := &stripe.Subscription{
		ID:               "sub_123",
		Status:           stripe.SubscriptionStatusActive,
		Customer:         &stripe.Customer{ID: "cus_123"},
		CurrentPeriodEnd: time.Now().Add(24 * time.Hour).Unix(),
		Metadata:         map[string]string{"hive_user_id": "user-1"},
	}
	if err := billing.SyncSubscription(context.Background(), sub); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	called := false
	handler := RequirePlan(billing)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, claimedRequest("user-1"))

	if rec.Code != http.StatusOK || !called {
		t.Errorf("expected request to pass gate, got %d (called=%v)", rec.Code, called)
	}
}

func TestRequirePlanWithoutClaims(t *testing.T) {
	billing := setupBilling(t)

	handler := RequirePlan(billing)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
