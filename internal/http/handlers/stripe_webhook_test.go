package handlers

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/hivehq/hive-api/internal/config"
	"github.com/hivehq/hive-api/internal/service"
)

const webhookSecret = "whsec_test_secret"

func signedWebhookRequest(t *testing.T, payload string) *http.Request {
	t.Helper()

	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), webhookSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	return req
}

func subscriptionEventPayload(eventType, status string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"api_version": %q,
		"type": %q,
		"data": {
			"object": {
				"id": "sub_1",
				"object": "subscription",
				"status": %q,
				"customer": "cus_1",
				"current_period_end": %d,
				"metadata": {"hive_user_id": "user-1"},
				"items": {"data": [{"price": {"lookup_key": "growth"}}]}
			}
		}
	}`, stripe.APIVersion, eventType, status, time.Now().Add(30*24*time.Hour).Unix())
}

func TestStripeWebhookSyncsSubscription(t *testing.T) {
	repos := setupRepos(t)
	billing := service.NewBillingService(repos.Subscriptions, slog.Default())
	cfg := &config.Config{StripeWebhookSecret: webhookSecret}
	h := NewStripeWebhookHandler(cfg, billing, slog.Default())

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedWebhookRequest(t, subscriptionEventPayload("customer.subscription.created", "active")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	sub, err := billing.SubscriptionFor(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if sub == nil || sub.Plan != "growth" || sub.Status != "active" {
		t.Errorf("unexpected subscription: %+v", sub)
	}
}

func TestStripeWebhookCancelsSubscription(t *testing.T) {
	repos := setupRepos(t)
	billing := service.NewBillingService(repos.Subscriptions, slog.Default())
	cfg := &config.Config{StripeWebhookSecret: webhookSecret}
	h := NewStripeWebhookHandler(cfg, billing, slog.Default())

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedWebhookRequest(t, subscriptionEventPayload("customer.subscription.created", "active")))
	if rec.Code != http.StatusOK {
		t.Fatalf("setup event failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleWebhook(rec, signedWebhookRequest(t, subscriptionEventPayload("customer.subscription.deleted", "active")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	sub, err := billing.SubscriptionFor(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if sub == nil || sub.Status != "canceled" {
		t.Errorf("expected canceled subscription, got %+v", sub)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	repos := setupRepos(t)
	billing := service.NewBillingService(repos.Subscriptions, slog.Default())
	cfg := &config.Config{StripeWebhookSecret: webhookSecret}
	h := NewStripeWebhookHandler(cfg, billing, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
