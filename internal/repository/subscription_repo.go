package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hivehq/hive-api/internal/models"
)

// SQLSubscriptionRepository implements SubscriptionRepository on the local
// SQL database. Subscription state lives here rather than the record store:
// webhook handlers need it on every request and it fits a fixed schema.
type SQLSubscriptionRepository struct {
	db *sql.DB
}

// NewSQLSubscriptionRepository creates a subscription repository.
func NewSQLSubscriptionRepository(db *sql.DB) *SQLSubscriptionRepository {
	return &SQLSubscriptionRepository{db: db}
}

// Upsert inserts or replaces the subscription for a user.
func (r *SQLSubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	now := time.Now().UTC().Format(time.RFC3339)
	periodEnd := ""
	if sub.CurrentPeriodEnd != nil {
		periodEnd = sub.CurrentPeriodEnd.UTC().Format(time.RFC3339)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			stripe_customer_id = excluded.stripe_customer_id,
			stripe_subscription_id = excluded.stripe_subscription_id,
			plan = excluded.plan,
			status = excluded.status,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`, sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.Plan, sub.Status, periodEnd, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// GetByUserID returns a user's subscription, or nil when none exists.
func (r *SQLSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.get(ctx, "user_id", userID)
}

// GetByCustomerID returns the subscription for a Stripe customer, or nil.
func (r *SQLSubscriptionRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	return r.get(ctx, "stripe_customer_id", customerID)
}

func (r *SQLSubscriptionRepository) get(ctx context.Context, column, value string) (*models.Subscription, error) {
	var sub models.Subscription
	var periodEnd, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE `+column+` = ?
	`, value).Scan(&sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID, &sub.Plan, &sub.Status, &periodEnd, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if periodEnd != "" {
		t := parseTime(periodEnd, time.Time{})
		sub.CurrentPeriodEnd = &t
	}
	sub.CreatedAt = parseTime(createdAt, time.Time{})
	sub.UpdatedAt = parseTime(updatedAt, time.Time{})

	return &sub, nil
}

// Delete removes a user's subscription row.
func (r *SQLSubscriptionRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
