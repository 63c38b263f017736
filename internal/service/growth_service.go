package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hivehq/hive-api/internal/llm"
	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
)

// GrowthService generates growth plans from diagnostic findings and fans
// them out into work items.
type GrowthService struct {
	companies   repository.CompanyRepository
	diagnostics repository.DiagnosticRepository
	plans       repository.GrowthPlanRepository
	workItems   repository.WorkItemRepository
	llmClient   *llm.Client
	llmConfig   llm.Config
	logger      *slog.Logger
}

// NewGrowthService creates a growth service.
func NewGrowthService(
	companies repository.CompanyRepository,
	diagnostics repository.DiagnosticRepository,
	plans repository.GrowthPlanRepository,
	workItems repository.WorkItemRepository,
	llmClient *llm.Client,
	llmConfig llm.Config,
	logger *slog.Logger,
) *GrowthService {
	return &GrowthService{
		companies:   companies,
		diagnostics: diagnostics,
		plans:       plans,
		workItems:   workItems,
		llmClient:   llmClient,
		llmConfig:   llmConfig,
		logger:      logger.With("component", "growth"),
	}
}

// planPayload is the JSON shape the LLM is asked to produce.
type planPayload struct {
	Title     string `json:"title"`
	Objective string `json:"objective"`
	Items     []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Area   string `json:"area"`
		Effort string `json:"effort"`
	} `json:"items"`
}

// GeneratePlan builds a growth plan from a completed run's findings and
// creates its work items.
func (s *GrowthService) GeneratePlan(ctx context.Context, companyID, runID string) (*models.GrowthPlan, []*models.WorkItem, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	if company == nil {
		return nil, nil, fmt.Errorf("company %s not found", companyID)
	}

	run, err := s.diagnostics.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if run == nil || run.CompanyID != companyID {
		return nil, nil, fmt.Errorf("run %s not found for company %s", runID, companyID)
	}
	if run.Status != models.RunStatusCompleted {
		return nil, nil, fmt.Errorf("run %s is %s, plans need a completed run", runID, run.Status)
	}

	findings, err := s.diagnostics.ListFindingsByRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if len(findings) == 0 {
		return nil, nil, fmt.Errorf("run %s has no findings to plan from", runID)
	}

	payload, err := s.generate(ctx, company, findings)
	if err != nil {
		return nil, nil, err
	}

	plan := &models.GrowthPlan{
		CompanyID: companyID,
		RunID:     runID,
		Title:     payload.Title,
		Objective: payload.Objective,
		Status:    "draft",
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, nil, fmt.Errorf("failed to create plan: %w", err)
	}

	items := make([]*models.WorkItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		workItem := &models.WorkItem{
			PlanID:    plan.ID,
			CompanyID: companyID,
			Title:     item.Title,
			Detail:    item.Detail,
			Area:      item.Area,
			Effort:    normalizeEffort(item.Effort),
			Status:    "open",
		}
		if err := s.workItems.Create(ctx, workItem); err != nil {
			return nil, nil, fmt.Errorf("failed to create work item: %w", err)
		}
		items = append(items, workItem)
	}

	s.logger.Info("growth plan generated",
		"plan_id", plan.ID,
		"company_id", companyID,
		"run_id", runID,
		"work_items", len(items),
	)
	return plan, items, nil
}

// GetPlan returns a plan, nil when absent.
func (s *GrowthService) GetPlan(ctx context.Context, id string) (*models.GrowthPlan, error) {
	return s.plans.GetByID(ctx, id)
}

// ListPlans returns a company's plans, newest first.
func (s *GrowthService) ListPlans(ctx context.Context, companyID string) ([]*models.GrowthPlan, error) {
	return s.plans.ListByCompany(ctx, companyID)
}

// PlanItems returns a plan's work items.
func (s *GrowthService) PlanItems(ctx context.Context, planID string) ([]*models.WorkItem, error) {
	return s.workItems.ListByPlan(ctx, planID)
}

// UpdateWorkItem rewrites a work item's mutable fields.
func (s *GrowthService) UpdateWorkItem(ctx context.Context, item *models.WorkItem) error {
	return s.workItems.Update(ctx, item)
}

func (s *GrowthService) generate(ctx context.Context, company *models.Company, findings []*models.Finding) (*planPayload, error) {
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return nil, err
	}

	prompt := buildPlanPrompt(company.Name, string(findingsJSON))
	result, err := s.llmClient.Call(ctx, s.llmConfig, prompt, llm.CallOptions{
		MaxTokens: 4096,
		JSONMode:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	doc, err := llm.ExtractJSON(result.Content)
	if err != nil {
		return nil, fmt.Errorf("plan output unparsable: %w", err)
	}

	var payload planPayload
	if err := json.Unmarshal(doc, &payload); err != nil {
		return nil, fmt.Errorf("plan output has unexpected shape: %w", err)
	}
	if payload.Title == "" || len(payload.Items) == 0 {
		return nil, fmt.Errorf("plan output missing title or items")
	}
	return &payload, nil
}

// normalizeEffort maps free-form effort strings to the s/m/l scale.
func normalizeEffort(effort string) string {
	switch strings.ToLower(strings.TrimSpace(effort)) {
	case "s", "small", "low":
		return "s"
	case "l", "large", "high":
		return "l"
	default:
		return "m"
	}
}

func buildPlanPrompt(companyName, findingsJSON string) string {
	return fmt.Sprintf(`You are a marketing strategist. Based on the diagnostic findings for %s, produce a 90-day growth plan as JSON: {"title": string, "objective": string, "items": [{"title": string, "detail": string, "area": string, "effort": "s"|"m"|"l"}]}. Order items by expected impact, 5-10 items, JSON only.

Findings:
%s`, companyName, findingsJSON)
}
