// Package models contains the domain types shared across services.
package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a diagnostic run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IntentLevel is the purchase-intent classification assigned to a company
// from its analytics signals.
type IntentLevel string

const (
	IntentHot     IntentLevel = "hot"
	IntentWarm    IntentLevel = "warm"
	IntentCooling IntentLevel = "cooling"
	IntentCold    IntentLevel = "cold"
)

// Company is one connected company workspace.
type Company struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Name           string      `json:"name"`
	Domain         string      `json:"domain"`
	LogoURL        string      `json:"logo_url,omitempty"`
	GA4PropertyID  string      `json:"ga4_property_id,omitempty"`
	SearchSiteURL  string      `json:"search_site_url,omitempty"`
	GoogleToken    string      `json:"-"` // encrypted refresh token, never serialized
	IntentLevel    IntentLevel `json:"intent_level,omitempty"`
	IntentScore    float64     `json:"intent_score,omitempty"`
	LastActivityAt *time.Time  `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ContextGraph is the aggregated picture of a company used to ground
// diagnostics and plan generation. Sections hold LLM- and analytics-derived
// documents keyed by section name.
type ContextGraph struct {
	CompanyID   string                     `json:"company_id"`
	Summary     string                     `json:"summary"`
	Sections    map[string]json.RawMessage `json:"sections"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// DiagnosticRun is one execution of the diagnostic pipeline for a company.
type DiagnosticRun struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	UserID      string     `json:"user_id"`
	Status      RunStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	Score       float64    `json:"score,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Finding is one diagnostic observation produced by a run.
type Finding struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	CompanyID string    `json:"company_id"`
	Area      string    `json:"area"` // e.g. "seo", "content", "conversion"
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// GrowthPlan is a generated plan of marketing initiatives for a company.
type GrowthPlan struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	RunID     string    `json:"run_id,omitempty"`
	Title     string    `json:"title"`
	Objective string    `json:"objective"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkItem is one actionable task under a growth plan.
type WorkItem struct {
	ID        string     `json:"id"`
	PlanID    string     `json:"plan_id"`
	CompanyID string     `json:"company_id"`
	Title     string     `json:"title"`
	Detail    string     `json:"detail"`
	Area      string     `json:"area"`
	Effort    string     `json:"effort"` // "s", "m", "l"
	Status    string     `json:"status"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Subscription mirrors a Stripe subscription for plan gating.
type Subscription struct {
	UserID               string     `json:"user_id"`
	StripeCustomerID     string     `json:"stripe_customer_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Active reports whether the subscription currently grants access.
func (s *Subscription) Active() bool {
	return s != nil && (s.Status == "active" || s.Status == "trialing")
}
