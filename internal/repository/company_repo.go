package repository

import (
	"context"
	"time"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/recordstore"
)

const companiesTable = "Companies"

// RecordCompanyRepository implements CompanyRepository over the record store.
type RecordCompanyRepository struct {
	client recordstore.Client
}

// NewRecordCompanyRepository creates a company repository.
func NewRecordCompanyRepository(client recordstore.Client) *RecordCompanyRepository {
	return &RecordCompanyRepository{client: client}
}

// Create writes a new company record.
func (r *RecordCompanyRepository) Create(ctx context.Context, company *models.Company) error {
	now := time.Now().UTC()
	company.CreatedAt = now
	company.UpdatedAt = now

	rec, err := r.client.Create(ctx, companiesTable, companyFields(company))
	if err != nil {
		return err
	}

	company.ID = rec.ID
	return nil
}

// GetByID retrieves a company, returning nil when absent.
func (r *RecordCompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	rec, err := r.client.Get(ctx, companiesTable, id)
	if err == recordstore.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return companyFromRecord(rec), nil
}

// ListByUserID returns a user's companies, most recently updated first.
func (r *RecordCompanyRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Company, error) {
	records, err := r.client.Select(ctx, companiesTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "User", Equals: userID}},
		SortField:  "Updated",
		SortDesc:   true,
	})
	if err != nil {
		return nil, err
	}

	companies := make([]*models.Company, 0, len(records))
	for _, rec := range records {
		companies = append(companies, companyFromRecord(rec))
	}
	return companies, nil
}

// Update rewrites a company's mutable fields.
func (r *RecordCompanyRepository) Update(ctx context.Context, company *models.Company) error {
	company.UpdatedAt = time.Now().UTC()
	_, err := r.client.Update(ctx, companiesTable, company.ID, companyFields(company))
	return err
}

// Delete removes a company record.
func (r *RecordCompanyRepository) Delete(ctx context.Context, id string) error {
	return r.client.Destroy(ctx, companiesTable, []string{id})
}

// companyFields maps a Company to record store fields. This is the only
// place the Companies field names appear.
func companyFields(c *models.Company) map[string]any {
	fields := map[string]any{
		"User":         c.UserID,
		"Name":         c.Name,
		"Domain":       c.Domain,
		"Logo URL":     c.LogoURL,
		"GA4 Property": c.GA4PropertyID,
		"Search Site":  c.SearchSiteURL,
		"Google Token": c.GoogleToken,
		"Intent Level": string(c.IntentLevel),
		"Intent Score": c.IntentScore,
		"Updated":      c.UpdatedAt.Format(time.RFC3339),
	}
	if c.LastActivityAt != nil {
		fields["Last Activity"] = c.LastActivityAt.Format(time.RFC3339)
	}
	return fields
}

func companyFromRecord(rec *recordstore.Record) *models.Company {
	c := &models.Company{
		ID:            rec.ID,
		UserID:        rec.StringField("User"),
		Name:          rec.StringField("Name"),
		Domain:        rec.StringField("Domain"),
		LogoURL:       rec.StringField("Logo URL"),
		GA4PropertyID: rec.StringField("GA4 Property"),
		SearchSiteURL: rec.StringField("Search Site"),
		GoogleToken:   rec.StringField("Google Token"),
		IntentLevel:   models.IntentLevel(rec.StringField("Intent Level")),
		IntentScore:   rec.FloatField("Intent Score"),
		CreatedAt:     rec.CreatedAt,
	}
	c.UpdatedAt = parseTime(rec.StringField("Updated"), rec.CreatedAt)
	if raw := rec.StringField("Last Activity"); raw != "" {
		t := parseTime(raw, time.Time{})
		c.LastActivityAt = &t
	}
	return c
}
