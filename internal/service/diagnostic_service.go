package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivehq/hive-api/internal/chunkstore"
	"github.com/hivehq/hive-api/internal/intent"
	"github.com/hivehq/hive-api/internal/llm"
	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
)

// Data types stored per run in the chunk store. Findings detail payloads
// regularly clear the record size ceiling, which is the whole reason the
// chunk store exists.
const (
	detailDataType = "findings_detail"
)

// DiagnosticService runs the diagnostic pipeline for a company and serves
// the results back.
type DiagnosticService struct {
	companies   repository.CompanyRepository
	diagnostics repository.DiagnosticRepository
	chunks      *chunkstore.Store
	contextSvc  *ContextService
	llmClient   *llm.Client
	llmConfig   llm.Config
	storage     *StorageService
	webhooks    *WebhookService
	webhookURL  string
	logger      *slog.Logger
}

// NewDiagnosticService creates a diagnostic service.
func NewDiagnosticService(
	companies repository.CompanyRepository,
	diagnostics repository.DiagnosticRepository,
	chunks *chunkstore.Store,
	contextSvc *ContextService,
	llmClient *llm.Client,
	llmConfig llm.Config,
	storage *StorageService,
	webhooks *WebhookService,
	webhookURL string,
	logger *slog.Logger,
) *DiagnosticService {
	return &DiagnosticService{
		companies:   companies,
		diagnostics: diagnostics,
		chunks:      chunks,
		contextSvc:  contextSvc,
		llmClient:   llmClient,
		llmConfig:   llmConfig,
		storage:     storage,
		webhooks:    webhooks,
		webhookURL:  webhookURL,
		logger:      logger.With("component", "diagnostic"),
	}
}

// CreateRun queues a new diagnostic run for a company.
func (s *DiagnosticService) CreateRun(ctx context.Context, companyID, userID string) (*models.DiagnosticRun, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("company %s not found", companyID)
	}

	run := &models.DiagnosticRun{
		CompanyID: companyID,
		UserID:    userID,
		Status:    models.RunStatusQueued,
	}
	if err := s.diagnostics.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to queue run: %w", err)
	}

	s.logger.Info("diagnostic run queued", "run_id", run.ID, "company_id", companyID)
	return run, nil
}

// GetRun returns a run, nil when absent.
func (s *DiagnosticService) GetRun(ctx context.Context, id string) (*models.DiagnosticRun, error) {
	return s.diagnostics.GetRun(ctx, id)
}

// ListRuns returns a company's runs, newest first.
func (s *DiagnosticService) ListRuns(ctx context.Context, companyID string) ([]*models.DiagnosticRun, error) {
	return s.diagnostics.ListRunsByCompany(ctx, companyID)
}

// Findings returns a run's findings.
func (s *DiagnosticService) Findings(ctx context.Context, runID string) ([]*models.Finding, error) {
	return s.diagnostics.ListFindingsByRun(ctx, runID)
}

// Execute runs the full diagnostic pipeline for a claimed run. Failures mark
// the run failed with the error recorded; the run record itself is always
// updated.
func (s *DiagnosticService) Execute(ctx context.Context, run *models.DiagnosticRun) error {
	s.logger.Info("executing diagnostic run", "run_id", run.ID, "company_id", run.CompanyID)

	if err := s.execute(ctx, run); err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		now := time.Now().UTC()
		run.CompletedAt = &now
		if updateErr := s.diagnostics.UpdateRun(ctx, run); updateErr != nil {
			s.logger.Error("failed to record run failure", "run_id", run.ID, "error", updateErr)
		}
		return err
	}
	return nil
}

// findingPayload is the JSON shape the LLM is asked to produce.
type findingPayload struct {
	Area     string  `json:"area"`
	Severity string  `json:"severity"`
	Title    string  `json:"title"`
	Detail   string  `json:"detail"`
	Score    float64 `json:"score"`
}

func (s *DiagnosticService) execute(ctx context.Context, run *models.DiagnosticRun) error {
	company, err := s.companies.GetByID(ctx, run.CompanyID)
	if err != nil {
		return err
	}
	if company == nil {
		return fmt.Errorf("company %s not found", run.CompanyID)
	}

	graph, err := s.contextSvc.Refresh(ctx, company.ID)
	if err != nil {
		return fmt.Errorf("failed to build context graph: %w", err)
	}

	findings, rawContent, err := s.generateFindings(ctx, company, graph)
	if err != nil {
		return err
	}

	// New findings replace any prior set on re-execution of the same run.
	if err := s.diagnostics.DeleteFindingsByRun(ctx, run.ID); err != nil {
		return fmt.Errorf("failed to clear findings: %w", err)
	}
	for _, f := range findings {
		f.RunID = run.ID
		f.CompanyID = company.ID
		if err := s.diagnostics.CreateFinding(ctx, f); err != nil {
			return fmt.Errorf("failed to persist finding: %w", err)
		}
	}

	// Oversized detail payload goes through the chunk store keyed by run.
	detail := map[string]any{
		"run_id":      run.ID,
		"company_id":  company.ID,
		"graph":       graph,
		"raw_output":  rawContent,
		"finding_ids": len(findings),
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal run detail: %w", err)
	}
	if _, err := s.chunks.Store(ctx, run.ID, detailDataType, string(detailJSON)); err != nil {
		return fmt.Errorf("failed to store run detail: %w", err)
	}

	run.Score = overallScore(findings)
	s.updateIntent(ctx, company, graph)

	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	run.Error = ""
	if err := s.diagnostics.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	s.archiveAndNotify(ctx, run, findings, detailJSON)

	s.logger.Info("diagnostic run completed",
		"run_id", run.ID,
		"company_id", company.ID,
		"findings", len(findings),
		"score", run.Score,
	)
	return nil
}

// generateFindings asks the LLM for structured findings grounded on the
// context graph.
func (s *DiagnosticService) generateFindings(ctx context.Context, company *models.Company, graph *models.ContextGraph) ([]*models.Finding, string, error) {
	graphJSON, err := json.Marshal(graph)
	if err != nil {
		return nil, "", err
	}

	prompt := buildFindingsPrompt(company.Name, string(graphJSON))
	result, err := s.llmClient.Call(ctx, s.llmConfig, prompt, llm.CallOptions{
		MaxTokens: 4096,
		JSONMode:  true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("findings generation failed: %w", err)
	}

	doc, err := llm.ExtractJSON(result.Content)
	if err != nil {
		return nil, result.Content, fmt.Errorf("findings output unparsable: %w", err)
	}

	payloads, err := parseFindings(doc)
	if err != nil {
		return nil, result.Content, err
	}

	findings := make([]*models.Finding, 0, len(payloads))
	for _, p := range payloads {
		findings = append(findings, &models.Finding{
			Area:     p.Area,
			Severity: p.Severity,
			Title:    p.Title,
			Detail:   p.Detail,
			Score:    p.Score,
		})
	}
	return findings, result.Content, nil
}

// parseFindings accepts either a bare array or an object with a "findings"
// key; models flip between the two.
func parseFindings(doc json.RawMessage) ([]findingPayload, error) {
	var payloads []findingPayload
	if err := json.Unmarshal(doc, &payloads); err == nil {
		return payloads, nil
	}

	var wrapped struct {
		Findings []findingPayload `json:"findings"`
	}
	if err := json.Unmarshal(doc, &wrapped); err == nil && wrapped.Findings != nil {
		return wrapped.Findings, nil
	}

	return nil, fmt.Errorf("findings output has unexpected shape")
}

// overallScore averages finding scores into a 0..10 run score.
func overallScore(findings []*models.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range findings {
		total += f.Score
	}
	return total / float64(len(findings))
}

// updateIntent reclassifies the company from the freshly fetched signals.
// Best-effort: a classification failure never fails the run.
func (s *DiagnosticService) updateIntent(ctx context.Context, company *models.Company, graph *models.ContextGraph) {
	signals := signalsFromGraph(graph)
	signals.LastActivityAt = company.LastActivityAt

	result := intent.Classify(time.Now().UTC(), signals)
	company.IntentLevel = result.Level
	company.IntentScore = result.Score

	if err := s.companies.Update(ctx, company); err != nil {
		s.logger.Warn("failed to update intent classification",
			"company_id", company.ID, "error", err)
	}
}

// signalsFromGraph pulls classification inputs back out of the graph's
// analytics sections.
func signalsFromGraph(graph *models.ContextGraph) intent.Signals {
	var signals intent.Signals

	if raw, ok := graph.Sections[sectionTraffic]; ok {
		var traffic struct {
			Sessions        int64   `json:"sessions"`
			EngagedSessions int64   `json:"engaged_sessions"`
			EngagementRate  float64 `json:"engagement_rate"`
		}
		if json.Unmarshal(raw, &traffic) == nil {
			signals.Sessions28d = traffic.Sessions
			signals.EngagementRate = traffic.EngagementRate
		}
	}

	if raw, ok := graph.Sections[sectionTopPages]; ok {
		var pages []struct {
			Views7d  int64 `json:"views_7d"`
			Views28d int64 `json:"views_28d"`
		}
		if json.Unmarshal(raw, &pages) == nil {
			for _, p := range pages {
				signals.PageViews7d += p.Views7d
				signals.PageViews28d += p.Views28d
			}
		}
	}

	if raw, ok := graph.Sections[sectionSearch]; ok {
		var queries []struct {
			Clicks int64 `json:"clicks"`
		}
		if json.Unmarshal(raw, &queries) == nil {
			for _, q := range queries {
				signals.SearchClicks28d += q.Clicks
			}
		}
	}

	return signals
}

// archiveAndNotify snapshots the completed run and fires the outbound
// webhook. Both are best-effort.
func (s *DiagnosticService) archiveAndNotify(ctx context.Context, run *models.DiagnosticRun, findings []*models.Finding, detail json.RawMessage) {
	if s.storage != nil && s.storage.IsEnabled() {
		snapshot := &RunSnapshot{
			RunID:       run.ID,
			CompanyID:   run.CompanyID,
			Score:       run.Score,
			Findings:    findings,
			Details:     detail,
			CompletedAt: *run.CompletedAt,
		}
		if err := s.storage.StoreSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn("snapshot archive failed", "run_id", run.ID, "error", err)
		}
	}

	if s.webhooks != nil && s.webhookURL != "" {
		s.webhooks.Send(ctx, s.webhookURL, map[string]any{
			"event":      "diagnostic_run.completed",
			"run_id":     run.ID,
			"company_id": run.CompanyID,
			"score":      run.Score,
			"findings":   len(findings),
		})
	}
}

// Details loads a run's chunk-stored payloads, reassembled.
func (s *DiagnosticService) Details(ctx context.Context, runID string) (map[string]json.RawMessage, error) {
	blobs, err := s.chunks.FetchAll(ctx, runID)
	if err != nil {
		return nil, err
	}

	details := make(map[string]json.RawMessage, len(blobs))
	for _, blob := range blobs {
		details[blob.DataType] = json.RawMessage(blob.Content)
	}
	return details, nil
}

// DeleteRun removes a run, its findings, its chunked detail payloads, and
// its archived snapshot.
func (s *DiagnosticService) DeleteRun(ctx context.Context, runID string) error {
	if err := s.diagnostics.DeleteFindingsByRun(ctx, runID); err != nil {
		return fmt.Errorf("failed to delete findings: %w", err)
	}
	if err := s.chunks.DeleteAll(ctx, runID); err != nil {
		return fmt.Errorf("failed to delete run details: %w", err)
	}
	if s.storage != nil && s.storage.IsEnabled() {
		if err := s.storage.DeleteSnapshot(ctx, runID); err != nil {
			s.logger.Warn("failed to delete snapshot", "run_id", runID, "error", err)
		}
	}
	if err := s.diagnostics.DeleteRun(ctx, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	s.logger.Info("diagnostic run deleted", "run_id", runID)
	return nil
}

func buildFindingsPrompt(companyName, graphJSON string) string {
	return fmt.Sprintf(`You are a marketing diagnostics engine. Analyze the context graph for %s and return a JSON array of findings. Each finding: {"area": "seo"|"content"|"conversion"|"analytics", "severity": "low"|"medium"|"high", "title": string, "detail": string, "score": number 0-10 where 10 is most urgent}. Return 5-12 findings, JSON only.

Context graph:
%s`, companyName, graphJSON)
}
