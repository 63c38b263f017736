// Package analytics fetches Google Analytics 4 and Search Console data and
// reshapes it into the flat metric rows the diagnostic pipeline consumes.
// Clients are stateless with respect to credentials: callers pass the access
// token per call so one client serves every connected company.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleTokenEndpoint = "https://oauth2.googleapis.com/token"

// OAuth exchanges stored Google refresh tokens for short-lived access
// tokens.
type OAuth struct {
	clientID     string
	clientSecret string
	endpoint     string
	client       *http.Client
	logger       *slog.Logger
}

// NewOAuth creates a token exchanger for one OAuth application.
func NewOAuth(clientID, clientSecret string, logger *slog.Logger) *OAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuth{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     googleTokenEndpoint,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger.With("component", "google-oauth"),
	}
}

// Refresh exchanges a refresh token for an access token. Form encoding per
// RFC 6749.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	o.logger.Debug("refreshed google access token", "expires_in", out.ExpiresIn)
	return out.AccessToken, nil
}

// IsUnauthorized reports whether an API error came back 401, meaning the
// access token expired and the caller should refresh and retry once.
func IsUnauthorized(err error) bool {
	return err != nil && strings.Contains(err.Error(), "status 401")
}
