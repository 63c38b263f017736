package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
	"github.com/hivehq/hive-api/internal/service"
)

// GrowthHandler handles growth plan and work item endpoints.
type GrowthHandler struct {
	companies repository.CompanyRepository
	svc       *service.GrowthService
}

// NewGrowthHandler creates a new growth plan handler.
func NewGrowthHandler(companies repository.CompanyRepository, svc *service.GrowthService) *GrowthHandler {
	return &GrowthHandler{companies: companies, svc: svc}
}

// PlanOutput represents a growth plan in API responses.
type PlanOutput struct {
	ID        string `json:"id" doc:"Plan ID"`
	CompanyID string `json:"company_id" doc:"Company ID"`
	RunID     string `json:"run_id,omitempty" doc:"Diagnostic run the plan was generated from"`
	Title     string `json:"title" doc:"Plan title"`
	Objective string `json:"objective" doc:"What the plan aims to achieve"`
	Status    string `json:"status" doc:"draft, active or done"`
	CreatedAt string `json:"created_at" doc:"Creation timestamp"`
}

func planToOutput(p *models.GrowthPlan) PlanOutput {
	return PlanOutput{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		RunID:     p.RunID,
		Title:     p.Title,
		Objective: p.Objective,
		Status:    p.Status,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// WorkItemOutput represents a work item in API responses.
type WorkItemOutput struct {
	ID        string `json:"id" doc:"Work item ID"`
	PlanID    string `json:"plan_id" doc:"Parent plan ID"`
	Title     string `json:"title" doc:"Task title"`
	Detail    string `json:"detail" doc:"Task description"`
	Area      string `json:"area" doc:"Marketing area"`
	Effort    string `json:"effort" doc:"Estimated effort: s, m or l"`
	Status    string `json:"status" doc:"open, in_progress or done"`
	DueAt     string `json:"due_at,omitempty" doc:"Due date"`
	CreatedAt string `json:"created_at" doc:"Creation timestamp"`
}

func workItemToOutput(w *models.WorkItem) WorkItemOutput {
	out := WorkItemOutput{
		ID:        w.ID,
		PlanID:    w.PlanID,
		Title:     w.Title,
		Detail:    w.Detail,
		Area:      w.Area,
		Effort:    w.Effort,
		Status:    w.Status,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
	}
	if w.DueAt != nil {
		out.DueAt = w.DueAt.Format(time.RFC3339)
	}
	return out
}

// getOwnedPlan loads a plan and checks company ownership.
func (h *GrowthHandler) getOwnedPlan(ctx context.Context, planID string) (*models.GrowthPlan, error) {
	plan, err := h.svc.GetPlan(ctx, planID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get plan: " + err.Error())
	}
	if plan == nil {
		return nil, huma.Error404NotFound("plan not found")
	}
	if _, err := requireCompany(ctx, h.companies, plan.CompanyID); err != nil {
		return nil, err
	}
	return plan, nil
}

// GeneratePlanInput represents generate plan request.
type GeneratePlanInput struct {
	ID   string `path:"id" doc:"Company ID"`
	Body struct {
		RunID string `json:"run_id" minLength:"1" doc:"Completed diagnostic run to plan from"`
	}
}

// GeneratePlanOutput represents generate plan response.
type GeneratePlanOutput struct {
	Body struct {
		Plan  PlanOutput       `json:"plan" doc:"Generated plan"`
		Items []WorkItemOutput `json:"items" doc:"Generated work items"`
	}
}

// GeneratePlan generates a growth plan from a completed diagnostic run.
func (h *GrowthHandler) GeneratePlan(ctx context.Context, input *GeneratePlanInput) (*GeneratePlanOutput, error) {
	company, err := requireCompany(ctx, h.companies, input.ID)
	if err != nil {
		return nil, err
	}

	plan, items, err := h.svc.GeneratePlan(ctx, company.ID, input.Body.RunID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to generate plan: " + err.Error())
	}

	output := &GeneratePlanOutput{}
	output.Body.Plan = planToOutput(plan)
	for _, item := range items {
		output.Body.Items = append(output.Body.Items, workItemToOutput(item))
	}
	return output, nil
}

// ListPlansInput represents list plans request.
type ListPlansInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// ListPlansOutput represents list plans response.
type ListPlansOutput struct {
	Body struct {
		Plans []PlanOutput `json:"plans" doc:"Growth plans for the company"`
	}
}

// ListPlans returns a company's growth plans.
func (h *GrowthHandler) ListPlans(ctx context.Context, input *ListPlansInput) (*ListPlansOutput, error) {
	company, err := requireCompany(ctx, h.companies, input.ID)
	if err != nil {
		return nil, err
	}

	plans, err := h.svc.ListPlans(ctx, company.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list plans: " + err.Error())
	}

	output := &ListPlansOutput{}
	for _, p := range plans {
		output.Body.Plans = append(output.Body.Plans, planToOutput(p))
	}
	return output, nil
}

// GetPlanInput represents get plan request.
type GetPlanInput struct {
	PlanID string `path:"planID" doc:"Plan ID"`
}

// GetPlanOutput represents get plan response.
type GetPlanOutput struct {
	Body PlanOutput
}

// GetPlan returns a single growth plan.
func (h *GrowthHandler) GetPlan(ctx context.Context, input *GetPlanInput) (*GetPlanOutput, error) {
	plan, err := h.getOwnedPlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	return &GetPlanOutput{Body: planToOutput(plan)}, nil
}

// GetPlanItemsInput represents plan items request.
type GetPlanItemsInput struct {
	PlanID string `path:"planID" doc:"Plan ID"`
}

// GetPlanItemsOutput represents plan items response.
type GetPlanItemsOutput struct {
	Body struct {
		Items []WorkItemOutput `json:"items" doc:"Work items under the plan"`
	}
}

// GetPlanItems returns the work items under a plan.
func (h *GrowthHandler) GetPlanItems(ctx context.Context, input *GetPlanItemsInput) (*GetPlanItemsOutput, error) {
	plan, err := h.getOwnedPlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}

	items, err := h.svc.PlanItems(ctx, plan.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list work items: " + err.Error())
	}

	output := &GetPlanItemsOutput{}
	for _, item := range items {
		output.Body.Items = append(output.Body.Items, workItemToOutput(item))
	}
	return output, nil
}

// UpdateWorkItemInput represents update work item request.
type UpdateWorkItemInput struct {
	PlanID string `path:"planID" doc:"Plan ID"`
	ItemID string `path:"itemID" doc:"Work item ID"`
	Body   struct {
		Status string `json:"status,omitempty" doc:"New status: open, in_progress or done"`
		DueAt  string `json:"due_at,omitempty" format:"date-time" doc:"New due date"`
	}
}

// UpdateWorkItemOutput represents update work item response.
type UpdateWorkItemOutput struct {
	Body WorkItemOutput
}

// UpdateWorkItem updates a work item's status or due date.
func (h *GrowthHandler) UpdateWorkItem(ctx context.Context, input *UpdateWorkItemInput) (*UpdateWorkItemOutput, error) {
	plan, err := h.getOwnedPlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}

	items, err := h.svc.PlanItems(ctx, plan.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list work items: " + err.Error())
	}

	var item *models.WorkItem
	for _, candidate := range items {
		if candidate.ID == input.ItemID {
			item = candidate
			break
		}
	}
	if item == nil {
		return nil, huma.Error404NotFound("work item not found")
	}

	if input.Body.Status != "" {
		item.Status = input.Body.Status
	}
	if input.Body.DueAt != "" {
		due, err := time.Parse(time.RFC3339, input.Body.DueAt)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid due_at")
		}
		item.DueAt = &due
	}

	if err := h.svc.UpdateWorkItem(ctx, item); err != nil {
		return nil, huma.Error500InternalServerError("failed to update work item: " + err.Error())
	}
	return &UpdateWorkItemOutput{Body: workItemToOutput(item)}, nil
}
