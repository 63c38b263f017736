package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// WebhookService delivers outbound webhooks (run completed, plan ready) to
// customer-configured endpoints.
type WebhookService struct {
	logger *slog.Logger
	client *http.Client
}

// NewWebhookService creates a webhook service.
func NewWebhookService(logger *slog.Logger) *WebhookService {
	return &WebhookService{
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send delivers a webhook payload without blocking the caller.
func (s *WebhookService) Send(ctx context.Context, url string, payload any) {
	go func() { _ = s.deliver(url, payload) }()
}

// SendSync delivers a webhook and waits for the outcome.
func (s *WebhookService) SendSync(ctx context.Context, url string, payload any) error {
	return s.deliver(url, payload)
}

func (s *WebhookService) deliver(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("webhook: failed to marshal payload", "error", err)
		return err
	}

	// Retry up to 3 times with quadratic backoff.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			s.logger.Error("webhook: failed to create request", "error", err)
			return err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Hive-Webhook/1.0")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("webhook: delivery failed", "url", url, "attempt", attempt+1, "error", err)
			continue
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.logger.Info("webhook: delivered", "url", url, "status", resp.StatusCode)
			return nil
		}

		lastErr = &WebhookError{StatusCode: resp.StatusCode}
		s.logger.Warn("webhook: non-success status", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
	}

	s.logger.Error("webhook: delivery failed after retries", "url", url, "error", lastErr)
	return lastErr
}

// WebhookError is a non-2xx delivery outcome.
type WebhookError struct {
	StatusCode int
}

func (e *WebhookError) Error() string {
	return "webhook delivery failed with status: " + http.StatusText(e.StatusCode)
}
