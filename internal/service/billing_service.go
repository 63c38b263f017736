package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
)

// ErrPlanRequired is returned when an operation needs an active subscription
// and the user has none.
var ErrPlanRequired = errors.New("active subscription required")

// userIDMetadataKey is the Stripe metadata key carrying our user ID. Set on
// the subscription at checkout time.
const userIDMetadataKey = "hive_user_id"

// BillingService keeps local subscription state in sync with Stripe and
// answers plan-gating questions.
type BillingService struct {
	subs   repository.SubscriptionRepository
	logger *slog.Logger
}

// NewBillingService creates a billing service.
func NewBillingService(subs repository.SubscriptionRepository, logger *slog.Logger) *BillingService {
	return &BillingService{subs: subs, logger: logger}
}

// SyncSubscription upserts local state from a Stripe subscription object.
// Used for created and updated webhook events.
func (s *BillingService) SyncSubscription(ctx context.Context, sub *stripe.Subscription) error {
	userID := sub.Metadata[userIDMetadataKey]
	if userID == "" {
		// Fall back to an existing mapping by customer ID.
		if sub.Customer != nil {
			existing, err := s.subs.GetByCustomerID(ctx, sub.Customer.ID)
			if err != nil {
				return fmt.Errorf("failed to look up subscription by customer: %w", err)
			}
			if existing != nil {
				userID = existing.UserID
			}
		}
	}
	if userID == "" {
		s.logger.Warn("stripe subscription missing user id", "subscription_id", sub.ID)
		return nil
	}

	local := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		Plan:                 planFromSubscription(sub),
		Status:               string(sub.Status),
	}
	if sub.Customer != nil {
		local.StripeCustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		local.CurrentPeriodEnd = &end
	}

	if err := s.subs.Upsert(ctx, local); err != nil {
		return fmt.Errorf("failed to sync subscription: %w", err)
	}

	s.logger.Info("synced subscription",
		"user_id", userID,
		"subscription_id", sub.ID,
		"plan", local.Plan,
		"status", local.Status,
	)
	return nil
}

// CancelSubscription marks local state canceled for a deleted Stripe
// subscription.
func (s *BillingService) CancelSubscription(ctx context.Context, sub *stripe.Subscription) error {
	canceled := *sub
	canceled.Status = stripe.SubscriptionStatusCanceled
	return s.SyncSubscription(ctx, &canceled)
}

// SubscriptionFor returns a user's local subscription state, nil when none.
func (s *BillingService) SubscriptionFor(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// RequireActivePlan returns ErrPlanRequired unless the user has an active or
// trialing subscription.
func (s *BillingService) RequireActivePlan(ctx context.Context, userID string) error {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if !sub.Active() {
		return ErrPlanRequired
	}
	return nil
}

// planFromSubscription extracts a plan name from the subscription's price.
func planFromSubscription(sub *stripe.Subscription) string {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if item.Price.LookupKey != "" {
				return item.Price.LookupKey
			}
			if item.Price.Nickname != "" {
				return item.Price.Nickname
			}
		}
	}
	if plan, ok := sub.Metadata["plan"]; ok {
		return plan
	}
	return "starter"
}
