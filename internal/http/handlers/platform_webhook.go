package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/hivehq/hive-api/internal/config"
	"github.com/hivehq/hive-api/internal/repository"
	"github.com/hivehq/hive-api/internal/service"
)

// PlatformWebhookHandler handles user lifecycle webhooks from the identity
// platform, signed with Svix.
type PlatformWebhookHandler struct {
	cfg         *config.Config
	companies   repository.CompanyRepository
	subs        repository.SubscriptionRepository
	diagnostics *service.DiagnosticService
	logger      *slog.Logger
}

// NewPlatformWebhookHandler creates a new platform webhook handler.
func NewPlatformWebhookHandler(cfg *config.Config, repos *repository.Repositories, diagnostics *service.DiagnosticService, logger *slog.Logger) *PlatformWebhookHandler {
	return &PlatformWebhookHandler{
		cfg:         cfg,
		companies:   repos.Companies,
		subs:        repos.Subscriptions,
		diagnostics: diagnostics,
		logger:      logger,
	}
}

// PlatformWebhookEvent represents a platform webhook event.
type PlatformWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// platformUserData is the user payload carried by user.* events.
type platformUserData struct {
	ID string `json:"id"`
}

// HandleWebhook processes incoming platform webhooks.
func (h *PlatformWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Verify webhook signature using Svix
	headers := http.Header{}
	headers.Set("svix-id", r.Header.Get("svix-id"))
	headers.Set("svix-timestamp", r.Header.Get("svix-timestamp"))
	headers.Set("svix-signature", r.Header.Get("svix-signature"))

	wh, err := svix.NewWebhook(h.cfg.PlatformWebhookSecret)
	if err != nil {
		h.logger.Error("failed to create webhook verifier", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := wh.Verify(payload, headers); err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event PlatformWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("failed to parse webhook event", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.handleEvent(ctx, event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		// Return 200 to prevent retries for business logic errors
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *PlatformWebhookHandler) handleEvent(ctx context.Context, event PlatformWebhookEvent) error {
	h.logger.Info("received platform webhook", "type", event.Type)

	switch event.Type {
	case "user.created":
		var user platformUserData
		if err := json.Unmarshal(event.Data, &user); err != nil {
			return err
		}
		h.logger.Info("platform user created", "user_id", user.ID)
		return nil

	case "user.deleted":
		var user platformUserData
		if err := json.Unmarshal(event.Data, &user); err != nil {
			return err
		}
		return h.cleanupUser(ctx, user.ID)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// cleanupUser removes everything owned by a deleted user: companies, their
// runs and artifacts, and subscription state. Best-effort per company so one
// failure doesn't strand the rest.
func (h *PlatformWebhookHandler) cleanupUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	companies, err := h.companies.ListByUserID(ctx, userID)
	if err != nil {
		return err
	}

	for _, company := range companies {
		runs, err := h.diagnostics.ListRuns(ctx, company.ID)
		if err != nil {
			h.logger.Warn("failed to list runs for cleanup", "company_id", company.ID, "error", err)
			continue
		}
		for _, run := range runs {
			if err := h.diagnostics.DeleteRun(ctx, run.ID); err != nil {
				h.logger.Warn("failed to delete run during cleanup", "run_id", run.ID, "error", err)
			}
		}
		if err := h.companies.Delete(ctx, company.ID); err != nil {
			h.logger.Warn("failed to delete company during cleanup", "company_id", company.ID, "error", err)
		}
	}

	if err := h.subs.Delete(ctx, userID); err != nil {
		h.logger.Warn("failed to delete subscription during cleanup", "user_id", userID, "error", err)
	}

	h.logger.Info("cleaned up deleted user", "user_id", userID, "companies", len(companies))
	return nil
}
