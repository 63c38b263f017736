package repository

import (
	"context"
	"time"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/recordstore"
)

const (
	diagnosticsTable = "Diagnostics"
	findingsTable    = "Findings"
)

// RecordDiagnosticRepository implements DiagnosticRepository over the record
// store.
type RecordDiagnosticRepository struct {
	client recordstore.Client
}

// NewRecordDiagnosticRepository creates a diagnostic repository.
func NewRecordDiagnosticRepository(client recordstore.Client) *RecordDiagnosticRepository {
	return &RecordDiagnosticRepository{client: client}
}

// CreateRun writes a new run in queued state.
func (r *RecordDiagnosticRepository) CreateRun(ctx context.Context, run *models.DiagnosticRun) error {
	run.CreatedAt = time.Now().UTC()
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}

	rec, err := r.client.Create(ctx, diagnosticsTable, runFields(run))
	if err != nil {
		return err
	}

	run.ID = rec.ID
	return nil
}

// GetRun retrieves a run, returning nil when absent.
func (r *RecordDiagnosticRepository) GetRun(ctx context.Context, id string) (*models.DiagnosticRun, error) {
	rec, err := r.client.Get(ctx, diagnosticsTable, id)
	if err == recordstore.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return runFromRecord(rec), nil
}

// ListRunsByCompany returns a company's runs, newest first.
func (r *RecordDiagnosticRepository) ListRunsByCompany(ctx context.Context, companyID string) ([]*models.DiagnosticRun, error) {
	records, err := r.client.Select(ctx, diagnosticsTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "Company", Equals: companyID}},
		SortField:  "Created",
		SortDesc:   true,
	})
	if err != nil {
		return nil, err
	}

	runs := make([]*models.DiagnosticRun, 0, len(records))
	for _, rec := range records {
		runs = append(runs, runFromRecord(rec))
	}
	return runs, nil
}

// UpdateRun rewrites a run's mutable fields.
func (r *RecordDiagnosticRepository) UpdateRun(ctx context.Context, run *models.DiagnosticRun) error {
	_, err := r.client.Update(ctx, diagnosticsTable, run.ID, runFields(run))
	return err
}

// DeleteRun removes a run record. Findings are deleted separately.
func (r *RecordDiagnosticRepository) DeleteRun(ctx context.Context, id string) error {
	return r.client.Destroy(ctx, diagnosticsTable, []string{id})
}

// ClaimQueuedRun picks the oldest queued run and marks it running. The
// record store offers no compare-and-swap, so two workers can race for the
// same run; callers tolerate the duplicate execution (results are
// last-write-wins per data type in the chunk store).
func (r *RecordDiagnosticRepository) ClaimQueuedRun(ctx context.Context) (*models.DiagnosticRun, error) {
	records, err := r.client.Select(ctx, diagnosticsTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "Status", Equals: string(models.RunStatusQueued)}},
		SortField:  "Created",
		MaxRecords: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	run := runFromRecord(records[0])
	now := time.Now().UTC()
	run.Status = models.RunStatusRunning
	run.StartedAt = &now

	if err := r.UpdateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// CreateFinding writes one finding.
func (r *RecordDiagnosticRepository) CreateFinding(ctx context.Context, finding *models.Finding) error {
	finding.CreatedAt = time.Now().UTC()

	rec, err := r.client.Create(ctx, findingsTable, map[string]any{
		"Run":      finding.RunID,
		"Company":  finding.CompanyID,
		"Area":     finding.Area,
		"Severity": finding.Severity,
		"Title":    finding.Title,
		"Detail":   finding.Detail,
		"Score":    finding.Score,
	})
	if err != nil {
		return err
	}

	finding.ID = rec.ID
	return nil
}

// ListFindingsByRun returns a run's findings ordered by descending score.
func (r *RecordDiagnosticRepository) ListFindingsByRun(ctx context.Context, runID string) ([]*models.Finding, error) {
	records, err := r.client.Select(ctx, findingsTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "Run", Equals: runID}},
		SortField:  "Score",
		SortDesc:   true,
	})
	if err != nil {
		return nil, err
	}

	findings := make([]*models.Finding, 0, len(records))
	for _, rec := range records {
		findings = append(findings, &models.Finding{
			ID:        rec.ID,
			RunID:     rec.StringField("Run"),
			CompanyID: rec.StringField("Company"),
			Area:      rec.StringField("Area"),
			Severity:  rec.StringField("Severity"),
			Title:     rec.StringField("Title"),
			Detail:    rec.StringField("Detail"),
			Score:     rec.FloatField("Score"),
			CreatedAt: rec.CreatedAt,
		})
	}
	return findings, nil
}

// DeleteFindingsByRun removes all findings for a run in store-limit batches.
func (r *RecordDiagnosticRepository) DeleteFindingsByRun(ctx context.Context, runID string) error {
	records, err := r.client.Select(ctx, findingsTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "Run", Equals: runID}},
	})
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	for start := 0; start < len(ids); start += recordstore.DestroyBatchLimit {
		end := start + recordstore.DestroyBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		if err := r.client.Destroy(ctx, findingsTable, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// runFields maps a run to record store fields.
func runFields(run *models.DiagnosticRun) map[string]any {
	fields := map[string]any{
		"Company": run.CompanyID,
		"User":    run.UserID,
		"Status":  string(run.Status),
		"Error":   run.Error,
		"Score":   run.Score,
		"Created": timeField(run.CreatedAt),
	}
	if run.StartedAt != nil {
		fields["Started"] = timeField(*run.StartedAt)
	}
	if run.CompletedAt != nil {
		fields["Completed"] = timeField(*run.CompletedAt)
	}
	return fields
}

func runFromRecord(rec *recordstore.Record) *models.DiagnosticRun {
	run := &models.DiagnosticRun{
		ID:        rec.ID,
		CompanyID: rec.StringField("Company"),
		UserID:    rec.StringField("User"),
		Status:    models.RunStatus(rec.StringField("Status")),
		Error:     rec.StringField("Error"),
		Score:     rec.FloatField("Score"),
		CreatedAt: parseTime(rec.StringField("Created"), rec.CreatedAt),
	}
	if raw := rec.StringField("Started"); raw != "" {
		t := parseTime(raw, time.Time{})
		run.StartedAt = &t
	}
	if raw := rec.StringField("Completed"); raw != "" {
		t := parseTime(raw, time.Time{})
		run.CompletedAt = &t
	}
	return run
}
