package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/hivehq/hive-api/internal/config"
	"github.com/hivehq/hive-api/internal/service"
)

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	cfg     *config.Config
	billing *service.BillingService
	logger  *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(cfg *config.Config, billing *service.BillingService, logger *slog.Logger) *StripeWebhookHandler {
	// Set Stripe API key
	stripe.Key = cfg.StripeSecretKey

	return &StripeWebhookHandler{
		cfg:     cfg,
		billing: billing,
		logger:  logger,
	}
}

// HandleWebhook processes incoming Stripe webhooks.
// This is a raw HTTP handler since huma doesn't handle raw body verification well.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Verify webhook signature
	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.cfg.StripeWebhookSecret)
	if err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.handleEvent(ctx, event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		// Return 200 to prevent Stripe from retrying; the failure is logged
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := subscriptionFromEvent(event)
		if err != nil {
			return err
		}
		return h.billing.SyncSubscription(ctx, sub)

	case "customer.subscription.deleted":
		sub, err := subscriptionFromEvent(event)
		if err != nil {
			return err
		}
		return h.billing.CancelSubscription(ctx, sub)

	case "checkout.session.completed":
		return h.handleCheckoutComplete(ctx, event)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// handleCheckoutComplete logs new checkouts. Subscription state arrives via
// the customer.subscription.* events that follow.
func (h *StripeWebhookHandler) handleCheckoutComplete(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	userID := session.Metadata["hive_user_id"]
	if userID == "" {
		h.logger.Warn("checkout session missing hive_user_id", "session_id", session.ID)
		return nil
	}

	h.logger.Info("checkout completed", "user_id", userID, "session_id", session.ID)
	return nil
}

func subscriptionFromEvent(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &sub, nil
}
