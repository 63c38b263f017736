package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hivehq/hive-api/internal/crypto"
	"github.com/hivehq/hive-api/internal/logograb"
	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
)

// CompaniesHandler handles company workspace endpoints.
type CompaniesHandler struct {
	repo      repository.CompanyRepository
	encryptor *crypto.Encryptor
	logo      *logograb.Grabber
}

// NewCompaniesHandler creates a new companies handler.
func NewCompaniesHandler(repo repository.CompanyRepository, encryptor *crypto.Encryptor, logo *logograb.Grabber) *CompaniesHandler {
	return &CompaniesHandler{repo: repo, encryptor: encryptor, logo: logo}
}

// CompanyOutput represents a company in API responses.
type CompanyOutput struct {
	ID             string  `json:"id" doc:"Company ID"`
	UserID         string  `json:"user_id" doc:"Owner user ID"`
	Name           string  `json:"name" doc:"Company name"`
	Domain         string  `json:"domain" doc:"Primary website domain"`
	LogoURL        string  `json:"logo_url,omitempty" doc:"Extracted logo URL"`
	GA4PropertyID  string  `json:"ga4_property_id,omitempty" doc:"Google Analytics property (properties/<id>)"`
	SearchSiteURL  string  `json:"search_site_url,omitempty" doc:"Search Console site URL"`
	GoogleLinked   bool    `json:"google_linked" doc:"Whether a Google refresh token is stored"`
	IntentLevel    string  `json:"intent_level,omitempty" doc:"Purchase intent: hot, warm, cooling, cold"`
	IntentScore    float64 `json:"intent_score,omitempty" doc:"Intent score 0-100"`
	LastActivityAt string  `json:"last_activity_at,omitempty" doc:"Most recent tracked activity"`
	CreatedAt      string  `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt      string  `json:"updated_at" doc:"Last update timestamp"`
}

func companyToOutput(c *models.Company) CompanyOutput {
	out := CompanyOutput{
		ID:            c.ID,
		UserID:        c.UserID,
		Name:          c.Name,
		Domain:        c.Domain,
		LogoURL:       c.LogoURL,
		GA4PropertyID: c.GA4PropertyID,
		SearchSiteURL: c.SearchSiteURL,
		GoogleLinked:  c.GoogleToken != "",
		IntentLevel:   string(c.IntentLevel),
		IntentScore:   c.IntentScore,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
	if c.LastActivityAt != nil {
		out.LastActivityAt = c.LastActivityAt.Format(time.RFC3339)
	}
	return out
}

// ListCompaniesOutput represents list companies response.
type ListCompaniesOutput struct {
	Body struct {
		Companies []CompanyOutput `json:"companies" doc:"Companies owned by the user"`
	}
}

// ListCompanies returns the user's companies.
func (h *CompaniesHandler) ListCompanies(ctx context.Context, input *struct{}) (*ListCompaniesOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	companies, err := h.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list companies: " + err.Error())
	}

	output := &ListCompaniesOutput{}
	for _, c := range companies {
		output.Body.Companies = append(output.Body.Companies, companyToOutput(c))
	}
	return output, nil
}

// GetCompanyInput represents get company request.
type GetCompanyInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// GetCompanyOutput represents get company response.
type GetCompanyOutput struct {
	Body CompanyOutput
}

// GetCompany retrieves a single company.
func (h *CompaniesHandler) GetCompany(ctx context.Context, input *GetCompanyInput) (*GetCompanyOutput, error) {
	company, err := requireCompany(ctx, h.repo, input.ID)
	if err != nil {
		return nil, err
	}
	return &GetCompanyOutput{Body: companyToOutput(company)}, nil
}

// CreateCompanyInput represents create company request.
type CreateCompanyInput struct {
	Body struct {
		Name          string `json:"name" minLength:"1" doc:"Company name"`
		Domain        string `json:"domain" minLength:"1" doc:"Primary website domain"`
		GA4PropertyID string `json:"ga4_property_id,omitempty" doc:"Google Analytics property"`
		SearchSiteURL string `json:"search_site_url,omitempty" doc:"Search Console site URL"`
	}
}

// CreateCompanyOutput represents create company response.
type CreateCompanyOutput struct {
	Body CompanyOutput
}

// CreateCompany creates a company workspace.
func (h *CompaniesHandler) CreateCompany(ctx context.Context, input *CreateCompanyInput) (*CreateCompanyOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	company := &models.Company{
		UserID:        userID,
		Name:          input.Body.Name,
		Domain:        normalizeDomain(input.Body.Domain),
		GA4PropertyID: input.Body.GA4PropertyID,
		SearchSiteURL: input.Body.SearchSiteURL,
	}
	if err := h.repo.Create(ctx, company); err != nil {
		return nil, huma.Error500InternalServerError("failed to create company: " + err.Error())
	}

	return &CreateCompanyOutput{Body: companyToOutput(company)}, nil
}

// UpdateCompanyInput represents update company request.
type UpdateCompanyInput struct {
	ID   string `path:"id" doc:"Company ID"`
	Body struct {
		Name          string `json:"name,omitempty" doc:"Company name"`
		Domain        string `json:"domain,omitempty" doc:"Primary website domain"`
		GA4PropertyID string `json:"ga4_property_id,omitempty" doc:"Google Analytics property"`
		SearchSiteURL string `json:"search_site_url,omitempty" doc:"Search Console site URL"`
	}
}

// UpdateCompanyOutput represents update company response.
type UpdateCompanyOutput struct {
	Body CompanyOutput
}

// UpdateCompany updates mutable company fields.
func (h *CompaniesHandler) UpdateCompany(ctx context.Context, input *UpdateCompanyInput) (*UpdateCompanyOutput, error) {
	company, err := requireCompany(ctx, h.repo, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Body.Name != "" {
		company.Name = input.Body.Name
	}
	if input.Body.Domain != "" {
		company.Domain = normalizeDomain(input.Body.Domain)
	}
	if input.Body.GA4PropertyID != "" {
		company.GA4PropertyID = input.Body.GA4PropertyID
	}
	if input.Body.SearchSiteURL != "" {
		company.SearchSiteURL = input.Body.SearchSiteURL
	}

	if err := h.repo.Update(ctx, company); err != nil {
		return nil, huma.Error500InternalServerError("failed to update company: " + err.Error())
	}
	return &UpdateCompanyOutput{Body: companyToOutput(company)}, nil
}

// DeleteCompanyInput represents delete company request.
type DeleteCompanyInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// DeleteCompanyOutput represents delete company response.
type DeleteCompanyOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// DeleteCompany removes a company workspace.
func (h *CompaniesHandler) DeleteCompany(ctx context.Context, input *DeleteCompanyInput) (*DeleteCompanyOutput, error) {
	company, err := requireCompany(ctx, h.repo, input.ID)
	if err != nil {
		return nil, err
	}

	if err := h.repo.Delete(ctx, company.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete company: " + err.Error())
	}

	output := &DeleteCompanyOutput{}
	output.Body.Deleted = true
	return output, nil
}

// ConnectGoogleInput represents the Google Analytics connection request.
type ConnectGoogleInput struct {
	ID   string `path:"id" doc:"Company ID"`
	Body struct {
		RefreshToken  string `json:"refresh_token" minLength:"1" doc:"Google OAuth refresh token"`
		GA4PropertyID string `json:"ga4_property_id,omitempty" doc:"Google Analytics property"`
		SearchSiteURL string `json:"search_site_url,omitempty" doc:"Search Console site URL"`
	}
}

// ConnectGoogleOutput represents the Google Analytics connection response.
type ConnectGoogleOutput struct {
	Body CompanyOutput
}

// ConnectGoogle stores an encrypted Google refresh token on a company.
func (h *CompaniesHandler) ConnectGoogle(ctx context.Context, input *ConnectGoogleInput) (*ConnectGoogleOutput, error) {
	company, err := requireCompany(ctx, h.repo, input.ID)
	if err != nil {
		return nil, err
	}

	encrypted, err := h.encryptor.Encrypt(input.Body.RefreshToken)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to store credentials")
	}
	company.GoogleToken = encrypted
	if input.Body.GA4PropertyID != "" {
		company.GA4PropertyID = input.Body.GA4PropertyID
	}
	if input.Body.SearchSiteURL != "" {
		company.SearchSiteURL = input.Body.SearchSiteURL
	}

	if err := h.repo.Update(ctx, company); err != nil {
		return nil, huma.Error500InternalServerError("failed to update company: " + err.Error())
	}
	return &ConnectGoogleOutput{Body: companyToOutput(company)}, nil
}

// GrabLogoInput represents the logo extraction request.
type GrabLogoInput struct {
	ID string `path:"id" doc:"Company ID"`
}

// GrabLogoOutput represents the logo extraction response.
type GrabLogoOutput struct {
	Body struct {
		LogoURL string `json:"logo_url" doc:"Best logo candidate found on the company site"`
	}
}

// GrabLogo crawls the company site for a logo and stores the best candidate.
func (h *CompaniesHandler) GrabLogo(ctx context.Context, input *GrabLogoInput) (*GrabLogoOutput, error) {
	company, err := requireCompany(ctx, h.repo, input.ID)
	if err != nil {
		return nil, err
	}

	logoURL, err := h.logo.Grab(ctx, siteURL(company.Domain))
	if err != nil {
		if errors.Is(err, logograb.ErrNoLogo) {
			return nil, huma.Error404NotFound("no logo found on site")
		}
		return nil, huma.Error502BadGateway("failed to crawl site: " + err.Error())
	}

	company.LogoURL = logoURL
	if err := h.repo.Update(ctx, company); err != nil {
		return nil, huma.Error500InternalServerError("failed to update company: " + err.Error())
	}

	output := &GrabLogoOutput{}
	output.Body.LogoURL = logoURL
	return output, nil
}

// normalizeDomain strips scheme and trailing slashes from a domain input.
func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}

// siteURL builds a crawlable URL from a stored domain.
func siteURL(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
