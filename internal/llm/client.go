package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// CallOptions configures one LLM call.
type CallOptions struct {
	Temperature float64       // default 0.2
	MaxTokens   int           // default 4096
	Timeout     time.Duration // default 120s
	JSONMode    bool          // request json_object response format (OpenAI-format APIs only)
}

// Result holds the model output and token usage for one call.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason string // normalized to OpenAI-style: "stop", "length", ...
}

// Truncated reports whether the output was cut off at the max_tokens limit.
func (r *Result) Truncated() bool {
	return r.FinishReason == "length"
}

// Config selects the provider, model, and key for a call.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // overrides the registry base URL when set
}

// Client makes direct HTTP calls to LLM chat APIs.
type Client struct {
	registry *Registry
	logger   *slog.Logger
}

// NewClient creates an LLM client over a provider registry.
func NewClient(registry *Registry, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{registry: registry, logger: logger.With("component", "llm")}
}

// Call sends a single-prompt chat request and returns the response content
// with token usage.
func (c *Client) Call(ctx context.Context, cfg Config, prompt string, opts CallOptions) (*Result, error) {
	provider := c.registry.Get(cfg.Provider)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key available for provider %s", cfg.Provider)
	}

	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}

	reqBody := map[string]any{
		"model": cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}
	if opts.JSONMode && provider.APIFormat == APIFormatOpenAI {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := provider.ChatURL()
	if cfg.BaseURL != "" {
		apiURL = cfg.BaseURL + provider.ChatEndpoint
	}

	c.logger.Debug("making llm request",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"prompt_length", len(prompt),
		"max_tokens", opts.MaxTokens,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthHeaders(req, provider, cfg.APIKey)

	client := &http.Client{Timeout: opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("llm api error",
			"provider", cfg.Provider, "status_code", resp.StatusCode, "response", string(body))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	result, err := parseResponse(provider.APIFormat, body)
	if err != nil {
		return nil, err
	}

	if result.Truncated() {
		c.logger.Warn("llm output truncated",
			"provider", cfg.Provider,
			"model", cfg.Model,
			"output_tokens", result.OutputTokens,
			"max_tokens", opts.MaxTokens,
		)
	}

	return result, nil
}

func setAuthHeaders(req *http.Request, provider *ProviderConfig, apiKey string) {
	switch provider.AuthType {
	case AuthTypeAPIKey:
		header := provider.AuthHeader
		if header == "" {
			header = "x-api-key"
		}
		req.Header.Set(header, apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for k, v := range provider.ExtraHeaders {
		req.Header.Set(k, v)
	}
}

// parseResponse extracts content and usage from the provider's wire format.
func parseResponse(format APIFormat, body []byte) (*Result, error) {
	if format == APIFormatAnthropic {
		return parseAnthropicFormat(body)
	}
	return parseOpenAIFormat(body)
}

func parseAnthropicFormat(body []byte) (*Result, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse anthropic response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from LLM")
	}

	result := &Result{
		Content:      resp.Content[0].Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}

	// Normalize stop_reason to OpenAI-style finish_reason.
	switch resp.StopReason {
	case "max_tokens":
		result.FinishReason = "length"
	case "end_turn", "stop_sequence":
		result.FinishReason = "stop"
	default:
		result.FinishReason = resp.StopReason
	}

	return result, nil
}

func parseOpenAIFormat(body []byte) (*Result, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from LLM")
	}

	return &Result{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}
