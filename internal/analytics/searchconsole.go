package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const searchConsoleEndpoint = "https://www.googleapis.com/webmasters/v3"

// SearchConsoleClient calls the Search Console searchanalytics query API.
type SearchConsoleClient struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewSearchConsoleClient creates a Search Console client.
func NewSearchConsoleClient(logger *slog.Logger) *SearchConsoleClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchConsoleClient{
		endpoint: searchConsoleEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "search-console"),
	}
}

// SearchStat is one row of search performance, keyed by query or page
// depending on the requested dimension.
type SearchStat struct {
	Key         string  `json:"key"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

type searchAnalyticsRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
}

type searchAnalyticsResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

// TopQueries returns the site's top search queries for the lookback window.
func (c *SearchConsoleClient) TopQueries(ctx context.Context, accessToken, siteURL string, days, limit int) ([]SearchStat, error) {
	return c.query(ctx, accessToken, siteURL, "query", days, limit)
}

// TopPages returns the site's top pages in search for the lookback window.
func (c *SearchConsoleClient) TopPages(ctx context.Context, accessToken, siteURL string, days, limit int) ([]SearchStat, error) {
	return c.query(ctx, accessToken, siteURL, "page", days, limit)
}

func (c *SearchConsoleClient) query(ctx context.Context, accessToken, siteURL, dimension string, days, limit int) ([]SearchStat, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	body := searchAnalyticsRequest{
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Dimensions: []string{dimension},
		RowLimit:   limit,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search analytics request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/sites/%s/searchAnalytics/query", c.endpoint, url.PathEscape(siteURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create search analytics request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search analytics request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search console api error (status %d): %s", resp.StatusCode, string(raw))
	}

	var out searchAnalyticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse search analytics response: %w", err)
	}

	stats := make([]SearchStat, 0, len(out.Rows))
	for _, row := range out.Rows {
		if len(row.Keys) == 0 {
			continue
		}
		stats = append(stats, SearchStat{
			Key:         row.Keys[0],
			Clicks:      int64(row.Clicks),
			Impressions: int64(row.Impressions),
			CTR:         row.CTR,
			Position:    row.Position,
		})
	}

	c.logger.Debug("fetched search analytics", "site", siteURL, "dimension", dimension, "rows", len(stats))
	return stats, nil
}
