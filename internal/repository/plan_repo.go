package repository

import (
	"context"
	"time"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/recordstore"
)

const plansTable = "GrowthPlans"

// RecordGrowthPlanRepository implements GrowthPlanRepository over the record
// store.
type RecordGrowthPlanRepository struct {
	client recordstore.Client
}

// NewRecordGrowthPlanRepository creates a growth plan repository.
func NewRecordGrowthPlanRepository(client recordstore.Client) *RecordGrowthPlanRepository {
	return &RecordGrowthPlanRepository{client: client}
}

// Create writes a new plan.
func (r *RecordGrowthPlanRepository) Create(ctx context.Context, plan *models.GrowthPlan) error {
	plan.CreatedAt = time.Now().UTC()
	if plan.Status == "" {
		plan.Status = "draft"
	}

	rec, err := r.client.Create(ctx, plansTable, planFields(plan))
	if err != nil {
		return err
	}

	plan.ID = rec.ID
	return nil
}

// GetByID retrieves a plan, returning nil when absent.
func (r *RecordGrowthPlanRepository) GetByID(ctx context.Context, id string) (*models.GrowthPlan, error) {
	rec, err := r.client.Get(ctx, plansTable, id)
	if err == recordstore.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return planFromRecord(rec), nil
}

// ListByCompany returns a company's plans, newest first.
func (r *RecordGrowthPlanRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.GrowthPlan, error) {
	records, err := r.client.Select(ctx, plansTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "Company", Equals: companyID}},
		SortField:  "Created",
		SortDesc:   true,
	})
	if err != nil {
		return nil, err
	}

	plans := make([]*models.GrowthPlan, 0, len(records))
	for _, rec := range records {
		plans = append(plans, planFromRecord(rec))
	}
	return plans, nil
}

// Update rewrites a plan's mutable fields.
func (r *RecordGrowthPlanRepository) Update(ctx context.Context, plan *models.GrowthPlan) error {
	_, err := r.client.Update(ctx, plansTable, plan.ID, planFields(plan))
	return err
}

func planFields(p *models.GrowthPlan) map[string]any {
	return map[string]any{
		"Company":   p.CompanyID,
		"Run":       p.RunID,
		"Title":     p.Title,
		"Objective": p.Objective,
		"Status":    p.Status,
		"Created":   timeField(p.CreatedAt),
	}
}

func planFromRecord(rec *recordstore.Record) *models.GrowthPlan {
	return &models.GrowthPlan{
		ID:        rec.ID,
		CompanyID: rec.StringField("Company"),
		RunID:     rec.StringField("Run"),
		Title:     rec.StringField("Title"),
		Objective: rec.StringField("Objective"),
		Status:    rec.StringField("Status"),
		CreatedAt: parseTime(rec.StringField("Created"), rec.CreatedAt),
	}
}
