package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hivehq/hive-api/internal/models"
)

func TestSubscriptionRepositoryUpsertAndGet(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSQLSubscriptionRepository(db)
	ctx := context.Background()

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	sub := &models.Subscription{
		UserID:               "user-1",
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_456",
		Plan:                 "growth",
		Status:               "active",
		CurrentPeriodEnd:     &periodEnd,
	}

	if err := repo.Upsert(ctx, sub); err != nil {
		t.Fatalf("failed to upsert subscription: %v", err)
	}

	got, err := repo.GetByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get subscription: %v", err)
	}
	if got == nil {
		t.Fatal("expected subscription, got nil")
	}
	if got.Plan != "growth" || got.Status != "active" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.CurrentPeriodEnd == nil || !got.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("expected period end %v, got %v", periodEnd, got.CurrentPeriodEnd)
	}
	if !got.Active() {
		t.Error("expected subscription to be active")
	}

	// Second upsert replaces in place.
	sub.Status = "canceled"
	sub.Plan = "starter"
	if err := repo.Upsert(ctx, sub); err != nil {
		t.Fatalf("failed to upsert subscription: %v", err)
	}

	got, err = repo.GetByCustomerID(ctx, "cus_123")
	if err != nil {
		t.Fatalf("failed to get subscription: %v", err)
	}
	if got.Status != "canceled" || got.Plan != "starter" {
		t.Errorf("upsert did not replace: %+v", got)
	}
	if got.Active() {
		t.Error("canceled subscription should not be active")
	}
}

func TestSubscriptionRepositoryGetMissing(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSQLSubscriptionRepository(db)

	got, err := repo.GetByUserID(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing subscription, got %+v", got)
	}
}

func TestSubscriptionRepositoryDelete(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSQLSubscriptionRepository(db)
	ctx := context.Background()

	sub := &models.Subscription{UserID: "user-1", StripeCustomerID: "cus_1", Status: "active"}
	if err := repo.Upsert(ctx, sub); err != nil {
		t.Fatalf("failed to upsert subscription: %v", err)
	}

	if err := repo.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("failed to delete subscription: %v", err)
	}

	got, err := repo.GetByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected subscription to be gone after delete")
	}
}
