package recordstore

import (
	"bytes"
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

// AirtableClient implements Client against the Airtable REST API.
type AirtableClient struct {
	endpoint string // e.g. "https://api.airtable.com/v0"
	baseID   string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewAirtableClient creates a client for one Airtable base.
func NewAirtableClient(endpoint, baseID, apiKey string, logger *slog.Logger) *AirtableClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &AirtableClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		baseID:   baseID,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "airtable"),
	}
}

// airtableRecord is the wire shape of a single record.
type airtableRecord struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

func (r *airtableRecord) toRecord() *Record {
	return &Record{ID: r.ID, Fields: r.Fields, CreatedAt: r.CreatedTime}
}

// Create writes one record.
func (c *AirtableClient) Create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	body := map[string]any{"fields": fields}

	var out airtableRecord
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, &out); err != nil {
		return nil, fmt.Errorf("airtable create %s: %w", table, err)
	}

	return out.toRecord(), nil
}

// Get returns one record by ID.
func (c *AirtableClient) Get(ctx context.Context, table, id string) (*Record, error) {
	var out airtableRecord
	if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"/"+url.PathEscape(id), nil, &out); err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("airtable get %s/%s: %w", table, id, err)
	}
	return out.toRecord(), nil
}

// Select queries a table. Airtable paginates with an offset token; all pages
// are drained before returning.
func (c *AirtableClient) Select(ctx context.Context, table string, q Query) ([]*Record, error) {
	params := url.Values{}
	if formula := buildFormula(q.Conditions); formula != "" {
		params.Set("filterByFormula", formula)
	}
	if q.SortField != "" {
		params.Set("sort[0][field]", q.SortField)
		direction := "asc"
		if q.SortDesc {
			direction = "desc"
		}
		params.Set("sort[0][direction]", direction)
	}
	if q.MaxRecords > 0 {
		params.Set("maxRecords", fmt.Sprintf("%d", q.MaxRecords))
	}

	var records []*Record
	offset := ""
	for {
		if offset != "" {
			params.Set("offset", offset)
		}

		var page struct {
			Records []airtableRecord `json:"records"`
			Offset  string           `json:"offset"`
		}
		reqURL := c.tableURL(table) + "?" + params.Encode()
		if err := c.do(ctx, http.MethodGet, reqURL, nil, &page); err != nil {
			return nil, fmt.Errorf("airtable select %s: %w", table, err)
		}

		for i := range page.Records {
			records = append(records, page.Records[i].toRecord())
		}

		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// Update patches fields on an existing record.
func (c *AirtableClient) Update(ctx context.Context, table, id string, fields map[string]any) (*Record, error) {
	body := map[string]any{"fields": fields}

	var out airtableRecord
	if err := c.do(ctx, http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(id), body, &out); err != nil {
		return nil, fmt.Errorf("airtable update %s/%s: %w", table, id, err)
	}

	return out.toRecord(), nil
}

// Destroy deletes up to DestroyBatchLimit records. This mirrors Airtable's
// own 10-record ceiling per DELETE call.
func (c *AirtableClient) Destroy(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > DestroyBatchLimit {
		return ErrTooManyIDs
	}

	params := url.Values{}
	for _, id := range ids {
		params.Add("records[]", id)
	}

	var out struct {
		Records []struct {
			ID      string `json:"id"`
			Deleted bool   `json:"deleted"`
		} `json:"records"`
	}
	reqURL := c.tableURL(table) + "?" + params.Encode()
	if err := c.do(ctx, http.MethodDelete, reqURL, nil, &out); err != nil {
		return fmt.Errorf("airtable destroy %s: %w", table, err)
	}

	return nil
}

func (c *AirtableClient) tableURL(table string) string {
	return c.endpoint + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *AirtableClient) do(ctx context.Context, method, reqURL string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		// Airtable rate limit: 5 req/s per base. Not retried here; the
		// caller retries the whole logical operation.
		return fmt.Errorf("rate limited (status 429): %s", string(data))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// buildFormula translates query conditions to an Airtable filterByFormula
// expression. Single quotes in values are backslash-escaped.
func buildFormula(conditions []Condition) string {
	if len(conditions) == 0 {
		return ""
	}

	clauses := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		switch {
		case cond.Contains != "":
			clauses = append(clauses, fmt.Sprintf("FIND('%s', {%s})", escapeFormulaValue(cond.Contains), cond.Field))
		case cond.Equals != nil:
			switch v := cond.Equals.(type) {
			case string:
				clauses = append(clauses, fmt.Sprintf("{%s} = '%s'", cond.Field, escapeFormulaValue(v)))
			case bool:
				if v {
					clauses = append(clauses, fmt.Sprintf("{%s} = TRUE()", cond.Field))
				} else {
					clauses = append(clauses, fmt.Sprintf("{%s} = FALSE()", cond.Field))
				}
			default:
				clauses = append(clauses, fmt.Sprintf("{%s} = %v", cond.Field, v))
			}
		}
	}

	if len(clauses) == 1 {
		return clauses[0]
	}
	return "AND(" + strings.Join(clauses, ", ") + ")"
}

func escapeFormulaValue(v string) string {
	return strings.ReplaceAll(v, "'", "\\'")
}
