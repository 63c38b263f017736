package service

import (
	"fmt"
	"log/slog"

	"github.com/hivehq/hive-api/internal/analytics"
	"github.com/hivehq/hive-api/internal/chunkstore"
	"github.com/hivehq/hive-api/internal/config"
	"github.com/hivehq/hive-api/internal/crypto"
	"github.com/hivehq/hive-api/internal/llm"
	"github.com/hivehq/hive-api/internal/logograb"
	"github.com/hivehq/hive-api/internal/recordstore"
	"github.com/hivehq/hive-api/internal/repository"
)

// Chunk store tables. Context graphs are keyed by company, run details by
// run, so they live in separate tables.
const (
	contextGraphsTable     = "ContextGraphs"
	diagnosticDetailsTable = "DiagnosticDetails"
)

// Services holds all service instances.
type Services struct {
	Context    *ContextService
	Diagnostic *DiagnosticService
	Growth     *GrowthService
	Billing    *BillingService
	Storage    *StorageService
	Webhook    *WebhookService
	Logo       *logograb.Grabber
	Encryptor  *crypto.Encryptor
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, store recordstore.Client, logger *slog.Logger) (*Services, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	llmRegistry := llm.NewRegistry()
	llmClient := llm.NewClient(llmRegistry, logger)
	llmConfig, err := resolveLLMConfig(cfg)
	if err != nil {
		return nil, err
	}

	oauth := analytics.NewOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, logger)
	ga4 := analytics.NewGA4Client(logger)
	search := analytics.NewSearchConsoleClient(logger)

	contextChunks := chunkstore.New(store, contextGraphsTable, logger)
	detailChunks := chunkstore.New(store, diagnosticDetailsTable, logger)

	webhookSvc := NewWebhookService(logger)
	contextSvc := NewContextService(repos.Companies, contextChunks, oauth, ga4, search, llmClient, llmConfig, encryptor, logger)
	diagnosticSvc := NewDiagnosticService(repos.Companies, repos.Diagnostics, detailChunks, contextSvc, llmClient, llmConfig, storageSvc, webhookSvc, cfg.RunWebhookURL, logger)
	growthSvc := NewGrowthService(repos.Companies, repos.Diagnostics, repos.GrowthPlans, repos.WorkItems, llmClient, llmConfig, logger)
	billingSvc := NewBillingService(repos.Subscriptions, logger)

	return &Services{
		Context:    contextSvc,
		Diagnostic: diagnosticSvc,
		Growth:     growthSvc,
		Billing:    billingSvc,
		Storage:    storageSvc,
		Webhook:    webhookSvc,
		Logo:       logograb.New(logger),
		Encryptor:  encryptor,
	}, nil
}

// resolveLLMConfig picks the provider key matching the configured provider.
func resolveLLMConfig(cfg *config.Config) (llm.Config, error) {
	out := llm.Config{Provider: cfg.LLMProvider, Model: cfg.LLMModel}

	switch cfg.LLMProvider {
	case llm.ProviderAnthropic:
		out.APIKey = cfg.AnthropicKey
		if out.Model == "" {
			out.Model = "claude-3-5-haiku-20241022"
		}
	case llm.ProviderOpenAI:
		out.APIKey = cfg.OpenAIKey
		if out.Model == "" {
			out.Model = "gpt-4o-mini"
		}
	case llm.ProviderOpenRouter:
		out.APIKey = cfg.OpenRouterKey
		if out.Model == "" {
			out.Model = "anthropic/claude-3.5-sonnet"
		}
	default:
		return out, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	return out, nil
}
