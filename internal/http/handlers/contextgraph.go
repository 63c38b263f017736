package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
	"github.com/hivehq/hive-api/internal/service"
)

// ContextHandler handles company context graph endpoints.
type ContextHandler struct {
	companies  repository.CompanyRepository
	contextSvc *service.ContextService
}

// NewContextHandler creates a new context graph handler.
func NewContextHandler(companies repository.CompanyRepository, contextSvc *service.ContextService) *ContextHandler {
	return &ContextHandler{companies: companies, contextSvc: contextSvc}
}

// ContextGraphOutput represents a context graph in API responses.
type ContextGraphOutput struct {
	CompanyID   string                     `json:"company_id" doc:"Company ID"`
	Summary     string                     `json:"summary,omitempty" doc:"LLM-generated company summary"`
	Sections    map[string]json.RawMessage `json:"sections" doc:"Analytics and profile sections keyed by name"`
	GeneratedAt string                     `json:"generated_at" doc:"When the graph was built"`
}

func graphToOutput(g *models.ContextGraph) ContextGraphOutput {
	return ContextGraphOutput{
		CompanyID:   g.CompanyID,
		Summary:     g.Summary,
		Sections:    g.Sections,
		GeneratedAt: g.GeneratedAt.Format(time.RFC3339),
	}
}

// GetContextInput represents get context graph request.
type GetContextInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// GetContextOutput represents get context graph response.
type GetContextOutput struct {
	Body ContextGraphOutput
}

// GetContext returns the stored context graph for a company.
func (h *ContextHandler) GetContext(ctx context.Context, input *GetContextInput) (*GetContextOutput, error) {
	if _, err := requireCompany(ctx, h.companies, input.ID); err != nil {
		return nil, err
	}

	graph, err := h.contextSvc.Get(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load context graph: " + err.Error())
	}
	if graph == nil {
		return nil, huma.Error404NotFound("context graph not built yet")
	}
	return &GetContextOutput{Body: graphToOutput(graph)}, nil
}

// RefreshContextInput represents refresh context graph request.
type RefreshContextInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// RefreshContextOutput represents refresh context graph response.
type RefreshContextOutput struct {
	Body ContextGraphOutput
}

// RefreshContext rebuilds the context graph from live analytics data.
func (h *ContextHandler) RefreshContext(ctx context.Context, input *RefreshContextInput) (*RefreshContextOutput, error) {
	if _, err := requireCompany(ctx, h.companies, input.ID); err != nil {
		return nil, err
	}

	graph, err := h.contextSvc.Refresh(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to refresh context graph: " + err.Error())
	}
	return &RefreshContextOutput{Body: graphToOutput(graph)}, nil
}
