// Package repository provides typed data access over the record store and
// the local SQL database. Record-store field names are string literals by
// necessity; they are confined to the per-repository mapping functions so
// the rest of the codebase only sees typed models.
package repository

import (
	"context"

	"github.com/hivehq/hive-api/internal/models"
)

// CompanyRepository manages company workspaces.
type CompanyRepository interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id string) (*models.Company, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Company, error)
	Update(ctx context.Context, company *models.Company) error
	Delete(ctx context.Context, id string) error
}

// DiagnosticRepository manages diagnostic runs and their findings.
type DiagnosticRepository interface {
	CreateRun(ctx context.Context, run *models.DiagnosticRun) error
	GetRun(ctx context.Context, id string) (*models.DiagnosticRun, error)
	ListRunsByCompany(ctx context.Context, companyID string) ([]*models.DiagnosticRun, error)
	UpdateRun(ctx context.Context, run *models.DiagnosticRun) error
	DeleteRun(ctx context.Context, id string) error
	ClaimQueuedRun(ctx context.Context) (*models.DiagnosticRun, error)

	CreateFinding(ctx context.Context, finding *models.Finding) error
	ListFindingsByRun(ctx context.Context, runID string) ([]*models.Finding, error)
	DeleteFindingsByRun(ctx context.Context, runID string) error
}

// GrowthPlanRepository manages growth plans.
type GrowthPlanRepository interface {
	Create(ctx context.Context, plan *models.GrowthPlan) error
	GetByID(ctx context.Context, id string) (*models.GrowthPlan, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.GrowthPlan, error)
	Update(ctx context.Context, plan *models.GrowthPlan) error
}

// WorkItemRepository manages work items.
type WorkItemRepository interface {
	Create(ctx context.Context, item *models.WorkItem) error
	ListByPlan(ctx context.Context, planID string) ([]*models.WorkItem, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.WorkItem, error)
	Update(ctx context.Context, item *models.WorkItem) error
}

// SubscriptionRepository manages Stripe subscription state.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error)
	Delete(ctx context.Context, userID string) error
}
