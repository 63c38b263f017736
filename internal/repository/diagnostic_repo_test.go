package repository

import (
	"context"
	"testing"

	"github.com/hivehq/hive-api/internal/models"
)

func TestDiagnosticRepositoryRunLifecycle(t *testing.T) {
	_, client := setupTestDB(t)
	repo := NewRecordDiagnosticRepository(client)
	ctx := context.Background()

	run := &models.DiagnosticRun{CompanyID: "recCOMPANY", UserID: "user-1"}
	if err := repo.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.Status != models.RunStatusQueued {
		t.Fatalf("expected new run to be queued, got %q", run.Status)
	}

	got, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got == nil || got.Status != models.RunStatusQueued {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	run.Status = models.RunStatusFailed
	run.Error = "analytics fetch timed out"
	if err := repo.UpdateRun(ctx, run); err != nil {
		t.Fatalf("failed to update run: %v", err)
	}

	got, err = repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != models.RunStatusFailed || got.Error != "analytics fetch timed out" {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestDiagnosticRepositoryClaimQueuedRun(t *testing.T) {
	_, client := setupTestDB(t)
	repo := NewRecordDiagnosticRepository(client)
	ctx := context.Background()

	// Oldest queued run should be claimed first.
	first := &models.DiagnosticRun{CompanyID: "recA", UserID: "user-1"}
	if err := repo.CreateRun(ctx, first); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	second := &models.DiagnosticRun{CompanyID: "recB", UserID: "user-1"}
	if err := repo.CreateRun(ctx, second); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	claimed, err := repo.ClaimQueuedRun(ctx)
	if err != nil {
		t.Fatalf("failed to claim run: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed run")
	}
	if claimed.ID != first.ID {
		t.Errorf("expected oldest run %s, got %s", first.ID, claimed.ID)
	}
	if claimed.Status != models.RunStatusRunning {
		t.Errorf("expected claimed run to be running, got %q", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Error("expected StartedAt to be set on claim")
	}

	// First run is no longer claimable.
	claimed, err = repo.ClaimQueuedRun(ctx)
	if err != nil {
		t.Fatalf("failed to claim run: %v", err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("expected second run next, got %+v", claimed)
	}

	// Queue drained.
	claimed, err = repo.ClaimQueuedRun(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty queue, got %+v", claimed)
	}
}

func TestDiagnosticRepositoryFindings(t *testing.T) {
	_, client := setupTestDB(t)
	repo := NewRecordDiagnosticRepository(client)
	ctx := context.Background()

	run := &models.DiagnosticRun{CompanyID: "recCOMPANY", UserID: "user-1"}
	if err := repo.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	findings := []*models.Finding{
		{RunID: run.ID, CompanyID: run.CompanyID, Area: "seo", Severity: "low", Title: "Missing sitemap", Score: 2},
		{RunID: run.ID, CompanyID: run.CompanyID, Area: "conversion", Severity: "high", Title: "No CTA above fold", Score: 8},
		{RunID: run.ID, CompanyID: run.CompanyID, Area: "content", Severity: "medium", Title: "Thin blog posts", Score: 5},
	}
	for _, f := range findings {
		if err := repo.CreateFinding(ctx, f); err != nil {
			t.Fatalf("failed to create finding: %v", err)
		}
	}

	got, err := repo.ListFindingsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list findings: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(got))
	}
	// Highest score first.
	if got[0].Score != 8 || got[1].Score != 5 || got[2].Score != 2 {
		t.Errorf("findings not sorted by score desc: %v, %v, %v", got[0].Score, got[1].Score, got[2].Score)
	}

	if err := repo.DeleteFindingsByRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete findings: %v", err)
	}
	got, err = repo.ListFindingsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list findings: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no findings after delete, got %d", len(got))
	}
}
