package repository

import (
	"context"
	"time"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/recordstore"
)

const workItemsTable = "WorkItems"

// RecordWorkItemRepository implements WorkItemRepository over the record
// store.
type RecordWorkItemRepository struct {
	client recordstore.Client
}

// NewRecordWorkItemRepository creates a work item repository.
func NewRecordWorkItemRepository(client recordstore.Client) *RecordWorkItemRepository {
	return &RecordWorkItemRepository{client: client}
}

// Create writes a new work item.
func (r *RecordWorkItemRepository) Create(ctx context.Context, item *models.WorkItem) error {
	item.CreatedAt = time.Now().UTC()
	if item.Status == "" {
		item.Status = "open"
	}

	rec, err := r.client.Create(ctx, workItemsTable, workItemFields(item))
	if err != nil {
		return err
	}

	item.ID = rec.ID
	return nil
}

// ListByPlan returns a plan's work items in creation order.
func (r *RecordWorkItemRepository) ListByPlan(ctx context.Context, planID string) ([]*models.WorkItem, error) {
	return r.list(ctx, recordstore.Condition{Field: "Plan", Equals: planID})
}

// ListByCompany returns all of a company's work items in creation order.
func (r *RecordWorkItemRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.WorkItem, error) {
	return r.list(ctx, recordstore.Condition{Field: "Company", Equals: companyID})
}

func (r *RecordWorkItemRepository) list(ctx context.Context, cond recordstore.Condition) ([]*models.WorkItem, error) {
	records, err := r.client.Select(ctx, workItemsTable, recordstore.Query{
		Conditions: []recordstore.Condition{cond},
		SortField:  "Created",
	})
	if err != nil {
		return nil, err
	}

	items := make([]*models.WorkItem, 0, len(records))
	for _, rec := range records {
		items = append(items, workItemFromRecord(rec))
	}
	return items, nil
}

// Update rewrites a work item's mutable fields.
func (r *RecordWorkItemRepository) Update(ctx context.Context, item *models.WorkItem) error {
	_, err := r.client.Update(ctx, workItemsTable, item.ID, workItemFields(item))
	return err
}

func workItemFields(w *models.WorkItem) map[string]any {
	fields := map[string]any{
		"Plan":    w.PlanID,
		"Company": w.CompanyID,
		"Title":   w.Title,
		"Detail":  w.Detail,
		"Area":    w.Area,
		"Effort":  w.Effort,
		"Status":  w.Status,
		"Created": timeField(w.CreatedAt),
	}
	if w.DueAt != nil {
		fields["Due"] = timeField(*w.DueAt)
	}
	return fields
}

func workItemFromRecord(rec *recordstore.Record) *models.WorkItem {
	item := &models.WorkItem{
		ID:        rec.ID,
		PlanID:    rec.StringField("Plan"),
		CompanyID: rec.StringField("Company"),
		Title:     rec.StringField("Title"),
		Detail:    rec.StringField("Detail"),
		Area:      rec.StringField("Area"),
		Effort:    rec.StringField("Effort"),
		Status:    rec.StringField("Status"),
		CreatedAt: parseTime(rec.StringField("Created"), rec.CreatedAt),
	}
	if raw := rec.StringField("Due"); raw != "" {
		t := parseTime(raw, time.Time{})
		item.DueAt = &t
	}
	return item
}
