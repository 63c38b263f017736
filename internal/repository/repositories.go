package repository

import (
	"database/sql"

	"github.com/hivehq/hive-api/internal/recordstore"
)

// Repositories bundles every repository for dependency injection.
type Repositories struct {
	Companies     CompanyRepository
	Diagnostics   DiagnosticRepository
	GrowthPlans   GrowthPlanRepository
	WorkItems     WorkItemRepository
	Subscriptions SubscriptionRepository
}

// New creates the repository set. Workspace data goes through the record
// store client; subscription state lives in the local SQL database.
func New(client recordstore.Client, db *sql.DB) *Repositories {
	return &Repositories{
		Companies:     NewRecordCompanyRepository(client),
		Diagnostics:   NewRecordDiagnosticRepository(client),
		GrowthPlans:   NewRecordGrowthPlanRepository(client),
		WorkItems:     NewRecordWorkItemRepository(client),
		Subscriptions: NewSQLSubscriptionRepository(db),
	}
}
