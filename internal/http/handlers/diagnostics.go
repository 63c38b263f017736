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

// DiagnosticsHandler handles diagnostic run endpoints.
type DiagnosticsHandler struct {
	companies repository.CompanyRepository
	svc       *service.DiagnosticService
}

// NewDiagnosticsHandler creates a new diagnostics handler.
func NewDiagnosticsHandler(companies repository.CompanyRepository, svc *service.DiagnosticService) *DiagnosticsHandler {
	return &DiagnosticsHandler{companies: companies, svc: svc}
}

// RunOutput represents a diagnostic run in API responses.
type RunOutput struct {
	ID          string  `json:"id" doc:"Run ID"`
	CompanyID   string  `json:"company_id" doc:"Company ID"`
	Status      string  `json:"status" doc:"queued, running, completed or failed"`
	Error       string  `json:"error,omitempty" doc:"Failure reason when status is failed"`
	Score       float64 `json:"score,omitempty" doc:"Overall diagnostic score"`
	CreatedAt   string  `json:"created_at" doc:"Creation timestamp"`
	StartedAt   string  `json:"started_at,omitempty" doc:"Processing start timestamp"`
	CompletedAt string  `json:"completed_at,omitempty" doc:"Completion timestamp"`
}

func runToOutput(r *models.DiagnosticRun) RunOutput {
	out := RunOutput{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		Status:    string(r.Status),
		Error:     r.Error,
		Score:     r.Score,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if r.StartedAt != nil {
		out.StartedAt = r.StartedAt.Format(time.RFC3339)
	}
	if r.CompletedAt != nil {
		out.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return out
}

// FindingOutput represents a diagnostic finding in API responses.
type FindingOutput struct {
	ID       string  `json:"id" doc:"Finding ID"`
	Area     string  `json:"area" doc:"Marketing area, e.g. seo, content, conversion"`
	Severity string  `json:"severity" doc:"low, medium or high"`
	Title    string  `json:"title" doc:"Short finding title"`
	Detail   string  `json:"detail" doc:"Explanation and suggested direction"`
	Score    float64 `json:"score" doc:"Impact score 0-10"`
}

func findingToOutput(f *models.Finding) FindingOutput {
	return FindingOutput{
		ID:       f.ID,
		Area:     f.Area,
		Severity: f.Severity,
		Title:    f.Title,
		Detail:   f.Detail,
		Score:    f.Score,
	}
}

// getOwnedRun loads a run and checks that the request user owns its company.
func (h *DiagnosticsHandler) getOwnedRun(ctx context.Context, runID string) (*models.DiagnosticRun, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	run, err := h.svc.GetRun(ctx, runID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get run: " + err.Error())
	}
	if run == nil {
		return nil, huma.Error404NotFound("run not found")
	}
	if run.UserID != userID {
		return nil, huma.Error403Forbidden("access denied")
	}
	return run, nil
}

// CreateRunInput represents create run request.
type CreateRunInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// CreateRunOutput represents create run response.
type CreateRunOutput struct {
	Body RunOutput
}

// CreateRun queues a diagnostic run for a company.
func (h *DiagnosticsHandler) CreateRun(ctx context.Context, input *CreateRunInput) (*CreateRunOutput, error) {
	company, err := requireCompany(ctx, h.companies, input.ID)
	if err != nil {
		return nil, err
	}

	run, err := h.svc.CreateRun(ctx, company.ID, company.UserID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to create run: " + err.Error())
	}
	return &CreateRunOutput{Body: runToOutput(run)}, nil
}

// ListRunsInput represents list runs request.
type ListRunsInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// ListRunsOutput represents list runs response.
type ListRunsOutput struct {
	Body struct {
		Runs []RunOutput `json:"runs" doc:"Diagnostic runs, newest first"`
	}
}

// ListRuns returns a company's diagnostic runs.
func (h *DiagnosticsHandler) ListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	company, err := requireCompany(ctx, h.companies, input.ID)
	if err != nil {
		return nil, err
	}

	runs, err := h.svc.ListRuns(ctx, company.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list runs: " + err.Error())
	}

	output := &ListRunsOutput{}
	for _, r := range runs {
		output.Body.Runs = append(output.Body.Runs, runToOutput(r))
	}
	return output, nil
}

// GetRunInput represents get run request.
type GetRunInput struct {
	RunID string `path:"runID" doc:"Run ID"`
}

// GetRunOutput represents get run response.
type GetRunOutput struct {
	Body RunOutput
}

// GetRun returns a single diagnostic run.
func (h *DiagnosticsHandler) GetRun(ctx context.Context, input *GetRunInput) (*GetRunOutput, error) {
	run, err := h.getOwnedRun(ctx, input.RunID)
	if err != nil {
		return nil, err
	}
	return &GetRunOutput{Body: runToOutput(run)}, nil
}

// GetRunFindingsInput represents run findings request.
type GetRunFindingsInput struct {
	RunID string `path:"runID" doc:"Run ID"`
}

// GetRunFindingsOutput represents run findings response.
type GetRunFindingsOutput struct {
	Body struct {
		Findings []FindingOutput `json:"findings" doc:"Findings, highest impact first"`
	}
}

// GetRunFindings returns the findings produced by a run.
func (h *DiagnosticsHandler) GetRunFindings(ctx context.Context, input *GetRunFindingsInput) (*GetRunFindingsOutput, error) {
	run, err := h.getOwnedRun(ctx, input.RunID)
	if err != nil {
		return nil, err
	}

	findings, err := h.svc.Findings(ctx, run.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list findings: " + err.Error())
	}

	output := &GetRunFindingsOutput{}
	for _, f := range findings {
		output.Body.Findings = append(output.Body.Findings, findingToOutput(f))
	}
	return output, nil
}

// GetRunDetailsInput represents run details request.
type GetRunDetailsInput struct {
	RunID string `path:"runID" doc:"Run ID"`
}

// GetRunDetailsOutput represents run details response.
type GetRunDetailsOutput struct {
	Body struct {
		Details map[string]json.RawMessage `json:"details" doc:"Raw run artifacts keyed by document type"`
	}
}

// GetRunDetails returns the raw artifacts stored for a run.
func (h *DiagnosticsHandler) GetRunDetails(ctx context.Context, input *GetRunDetailsInput) (*GetRunDetailsOutput, error) {
	run, err := h.getOwnedRun(ctx, input.RunID)
	if err != nil {
		return nil, err
	}

	details, err := h.svc.Details(ctx, run.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load run details: " + err.Error())
	}

	output := &GetRunDetailsOutput{}
	output.Body.Details = details
	return output, nil
}

// DeleteRunInput represents delete run request.
type DeleteRunInput struct {
	RunID string `path:"runID" doc:"Run ID"`
}

// DeleteRunOutput represents delete run response.
type DeleteRunOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// DeleteRun removes a run, its findings and its stored artifacts.
func (h *DiagnosticsHandler) DeleteRun(ctx context.Context, input *DeleteRunInput) (*DeleteRunOutput, error) {
	run, err := h.getOwnedRun(ctx, input.RunID)
	if err != nil {
		return nil, err
	}

	if err := h.svc.DeleteRun(ctx, run.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete run: " + err.Error())
	}

	output := &DeleteRunOutput{}
	output.Body.Deleted = true
	return output, nil
}
