package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const ga4Endpoint = "https://analyticsdata.googleapis.com/v1beta"

// GA4Client calls the Google Analytics 4 Data API runReport endpoint
// directly over HTTP.
type GA4Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewGA4Client creates a GA4 Data API client.
func NewGA4Client(logger *slog.Logger) *GA4Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &GA4Client{
		endpoint: ga4Endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "ga4"),
	}
}

// PageMetrics holds page view counts for one page path across the three
// lookback windows the intent classifier uses.
type PageMetrics struct {
	Path     string `json:"path"`
	Views7d  int64  `json:"views_7d"`
	Views28d int64  `json:"views_28d"`
	Views90d int64  `json:"views_90d"`
}

// TrafficSummary aggregates property-level engagement for the last 28 days.
type TrafficSummary struct {
	Sessions        int64   `json:"sessions"`
	EngagedSessions int64   `json:"engaged_sessions"`
	EngagementRate  float64 `json:"engagement_rate"`
}

// runReport wire types.
type ga4Request struct {
	DateRanges []ga4DateRange `json:"dateRanges"`
	Dimensions []ga4Name      `json:"dimensions,omitempty"`
	Metrics    []ga4Name      `json:"metrics"`
	OrderBys   []ga4OrderBy   `json:"orderBys,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

type ga4DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ga4Name struct {
	Name string `json:"name"`
}

type ga4OrderBy struct {
	Metric struct {
		MetricName string `json:"metricName"`
	} `json:"metric"`
	Desc bool `json:"desc"`
}

type ga4Response struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
	RowCount int `json:"rowCount"`
}

// TopPages returns the top pages by views. One request covers all three
// lookback windows: GA4 returns metric values per date range in request
// order.
func (c *GA4Client) TopPages(ctx context.Context, accessToken, propertyID string, limit int) ([]PageMetrics, error) {
	req := ga4Request{
		DateRanges: []ga4DateRange{
			{StartDate: "7daysAgo", EndDate: "today"},
			{StartDate: "28daysAgo", EndDate: "today"},
			{StartDate: "90daysAgo", EndDate: "today"},
		},
		Dimensions: []ga4Name{{Name: "pagePath"}},
		Metrics:    []ga4Name{{Name: "screenPageViews"}},
		Limit:      limit,
	}
	req.OrderBys = []ga4OrderBy{{Desc: true}}
	req.OrderBys[0].Metric.MetricName = "screenPageViews"

	var resp ga4Response
	if err := c.runReport(ctx, accessToken, propertyID, req, &resp); err != nil {
		return nil, err
	}

	pages := make([]PageMetrics, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if len(row.DimensionValues) < 1 || len(row.MetricValues) < 3 {
			c.logger.Warn("skipping malformed ga4 row",
				"dimensions", len(row.DimensionValues), "metrics", len(row.MetricValues))
			continue
		}
		pages = append(pages, PageMetrics{
			Path:     row.DimensionValues[0].Value,
			Views7d:  parseCount(row.MetricValues[0].Value),
			Views28d: parseCount(row.MetricValues[1].Value),
			Views90d: parseCount(row.MetricValues[2].Value),
		})
	}

	c.logger.Debug("fetched top pages", "property_id", propertyID, "pages", len(pages))
	return pages, nil
}

// Traffic returns the property's 28-day engagement summary.
func (c *GA4Client) Traffic(ctx context.Context, accessToken, propertyID string) (*TrafficSummary, error) {
	req := ga4Request{
		DateRanges: []ga4DateRange{{StartDate: "28daysAgo", EndDate: "today"}},
		Metrics: []ga4Name{
			{Name: "sessions"},
			{Name: "engagedSessions"},
			{Name: "engagementRate"},
		},
	}

	var resp ga4Response
	if err := c.runReport(ctx, accessToken, propertyID, req, &resp); err != nil {
		return nil, err
	}

	summary := &TrafficSummary{}
	if len(resp.Rows) > 0 && len(resp.Rows[0].MetricValues) >= 3 {
		summary.Sessions = parseCount(resp.Rows[0].MetricValues[0].Value)
		summary.EngagedSessions = parseCount(resp.Rows[0].MetricValues[1].Value)
		summary.EngagementRate, _ = strconv.ParseFloat(resp.Rows[0].MetricValues[2].Value, 64)
	}
	return summary, nil
}

func (c *GA4Client) runReport(ctx context.Context, accessToken, propertyID string, reqBody ga4Request, out *ga4Response) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal runReport request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s:runReport", c.endpoint, propertyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create runReport request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("runReport request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ga4 api error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse runReport response: %w", err)
	}
	return nil
}

// parseCount parses a GA4 metric value, treating unparsable values as zero
// so one bad row never fails a whole report.
func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
