// Package llm provides a provider registry and a direct HTTP client for
// chat-completion style LLM APIs. Providers differ in endpoint, auth header
// shape, and response format; the registry captures those differences so the
// client stays provider-agnostic.
package llm

import "strings"

// API formats determine how requests are built and responses parsed.
type APIFormat string

const (
	APIFormatOpenAI    APIFormat = "openai"
	APIFormatAnthropic APIFormat = "anthropic"
)

// Auth header shapes.
type AuthType string

const (
	AuthTypeBearer AuthType = "bearer"
	AuthTypeAPIKey AuthType = "api-key"
)

// Known providers.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
)

// ProviderConfig describes how to talk to one provider's API.
type ProviderConfig struct {
	Name         string
	BaseURL      string
	ChatEndpoint string
	APIFormat    APIFormat
	AuthType     AuthType
	AuthHeader   string // used when AuthType is api-key
	ExtraHeaders map[string]string
}

// ChatURL returns the full chat-completion endpoint.
func (p *ProviderConfig) ChatURL() string {
	return p.BaseURL + p.ChatEndpoint
}

// Registry holds provider configurations keyed by provider name.
type Registry struct {
	providers map[string]*ProviderConfig
}

// NewRegistry returns a registry with the supported providers registered.
func NewRegistry() *Registry {
	r := &Registry{providers: map[string]*ProviderConfig{}}

	r.Register(&ProviderConfig{
		Name:         ProviderOpenAI,
		BaseURL:      "https://api.openai.com",
		ChatEndpoint: "/v1/chat/completions",
		APIFormat:    APIFormatOpenAI,
		AuthType:     AuthTypeBearer,
	})

	r.Register(&ProviderConfig{
		Name:         ProviderAnthropic,
		BaseURL:      "https://api.anthropic.com",
		ChatEndpoint: "/v1/messages",
		APIFormat:    APIFormatAnthropic,
		AuthType:     AuthTypeAPIKey,
		AuthHeader:   "x-api-key",
		ExtraHeaders: map[string]string{"anthropic-version": "2023-06-01"},
	})

	r.Register(&ProviderConfig{
		Name:         ProviderOpenRouter,
		BaseURL:      "https://openrouter.ai/api",
		ChatEndpoint: "/v1/chat/completions",
		APIFormat:    APIFormatOpenAI,
		AuthType:     AuthTypeBearer,
		ExtraHeaders: map[string]string{"X-Title": "Hive OS"},
	})

	return r
}

// Register adds or replaces a provider configuration.
func (r *Registry) Register(cfg *ProviderConfig) {
	r.providers[cfg.Name] = cfg
}

// Get returns the configuration for a provider, or nil when unknown.
func (r *Registry) Get(provider string) *ProviderConfig {
	return r.providers[strings.ToLower(provider)]
}

// Providers lists the registered provider names.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
