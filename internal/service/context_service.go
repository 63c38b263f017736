package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivehq/hive-api/internal/analytics"
	"github.com/hivehq/hive-api/internal/chunkstore"
	"github.com/hivehq/hive-api/internal/crypto"
	"github.com/hivehq/hive-api/internal/llm"
	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
)

// Context graph section names.
const (
	sectionProfile       = "profile"
	sectionTraffic       = "traffic"
	sectionTopPages      = "top_pages"
	sectionSearch        = "search"
	sectionSummary       = "summary"
	contextGraphDataType = "context_graph"
)

// ContextService builds and persists company context graphs. Graphs easily
// exceed the record size ceiling so they are stored through the chunk store.
type ContextService struct {
	companies    repository.CompanyRepository
	chunks       *chunkstore.Store
	oauth        *analytics.OAuth
	ga4          *analytics.GA4Client
	search       *analytics.SearchConsoleClient
	llmClient    *llm.Client
	llmConfig    llm.Config
	encryptor    *crypto.Encryptor
	logger       *slog.Logger
}

// NewContextService creates a context service.
func NewContextService(
	companies repository.CompanyRepository,
	chunks *chunkstore.Store,
	oauth *analytics.OAuth,
	ga4 *analytics.GA4Client,
	search *analytics.SearchConsoleClient,
	llmClient *llm.Client,
	llmConfig llm.Config,
	encryptor *crypto.Encryptor,
	logger *slog.Logger,
) *ContextService {
	return &ContextService{
		companies: companies,
		chunks:    chunks,
		oauth:     oauth,
		ga4:       ga4,
		search:    search,
		llmClient: llmClient,
		llmConfig: llmConfig,
		encryptor: encryptor,
		logger:    logger.With("component", "context"),
	}
}

// Refresh rebuilds a company's context graph from live data and persists it.
func (s *ContextService) Refresh(ctx context.Context, companyID string) (*models.ContextGraph, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("company %s not found", companyID)
	}

	graph := &models.ContextGraph{
		CompanyID:   companyID,
		Sections:    map[string]json.RawMessage{},
		GeneratedAt: time.Now().UTC(),
	}

	s.addSection(graph, sectionProfile, map[string]any{
		"name":   company.Name,
		"domain": company.Domain,
	})

	// Analytics sections are best-effort: a company without connected
	// properties still gets a graph.
	if company.GoogleToken != "" {
		s.addAnalyticsSections(ctx, company, graph)
	}

	if summary, err := s.summarize(ctx, company, graph); err != nil {
		s.logger.Warn("context summary failed", "company_id", companyID, "error", err)
	} else {
		graph.Summary = summary
		s.addSection(graph, sectionSummary, map[string]string{"text": summary})
	}

	if err := s.persist(ctx, graph); err != nil {
		return nil, err
	}

	s.logger.Info("context graph refreshed",
		"company_id", companyID, "sections", len(graph.Sections))
	return graph, nil
}

// Get loads the last persisted context graph, nil when never built.
func (s *ContextService) Get(ctx context.Context, companyID string) (*models.ContextGraph, error) {
	blob, err := s.chunks.FetchOne(ctx, companyID, contextGraphDataType)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}

	var graph models.ContextGraph
	if err := json.Unmarshal([]byte(blob.Content), &graph); err != nil {
		return nil, fmt.Errorf("corrupt context graph for %s: %w", companyID, err)
	}
	return &graph, nil
}

func (s *ContextService) addAnalyticsSections(ctx context.Context, company *models.Company, graph *models.ContextGraph) {
	refreshToken, err := s.encryptor.Decrypt(company.GoogleToken)
	if err != nil {
		s.logger.Error("failed to decrypt google token", "company_id", company.ID, "error", err)
		return
	}

	accessToken, err := s.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("google token refresh failed", "company_id", company.ID, "error", err)
		return
	}

	if company.GA4PropertyID != "" {
		if traffic, err := s.ga4.Traffic(ctx, accessToken, company.GA4PropertyID); err != nil {
			s.logger.Warn("traffic fetch failed", "company_id", company.ID, "error", err)
		} else {
			s.addSection(graph, sectionTraffic, traffic)
		}

		if pages, err := s.ga4.TopPages(ctx, accessToken, company.GA4PropertyID, 50); err != nil {
			s.logger.Warn("top pages fetch failed", "company_id", company.ID, "error", err)
		} else {
			s.addSection(graph, sectionTopPages, pages)
		}
	}

	if company.SearchSiteURL != "" {
		if queries, err := s.search.TopQueries(ctx, accessToken, company.SearchSiteURL, 28, 25); err != nil {
			s.logger.Warn("search query fetch failed", "company_id", company.ID, "error", err)
		} else {
			s.addSection(graph, sectionSearch, queries)
		}
	}
}

func (s *ContextService) addSection(graph *models.ContextGraph, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal context section", "section", name, "error", err)
		return
	}
	graph.Sections[name] = data
}

// summarize asks the LLM for a short positioning summary grounded on the
// collected sections.
func (s *ContextService) summarize(ctx context.Context, company *models.Company, graph *models.ContextGraph) (string, error) {
	sections, err := json.Marshal(graph.Sections)
	if err != nil {
		return "", err
	}

	prompt := buildContextSummaryPrompt(company.Name, company.Domain, string(sections))
	result, err := s.llmClient.Call(ctx, s.llmConfig, prompt, llm.CallOptions{MaxTokens: 1024})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (s *ContextService) persist(ctx context.Context, graph *models.ContextGraph) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal context graph: %w", err)
	}

	// Replace rather than append: one live graph per company.
	if err := s.chunks.DeleteAll(ctx, graph.CompanyID); err != nil {
		return fmt.Errorf("failed to clear previous context graph: %w", err)
	}
	if _, err := s.chunks.Store(ctx, graph.CompanyID, contextGraphDataType, string(data)); err != nil {
		return fmt.Errorf("failed to store context graph: %w", err)
	}
	return nil
}

func buildContextSummaryPrompt(name, domain, sections string) string {
	return fmt.Sprintf(`You are a marketing analyst. Summarize the current marketing position of %s (%s) in 3-5 sentences, grounded only on the data below. Mention traffic trend, search demand, and the strongest content areas.

Data:
%s`, name, domain, sections)
}
