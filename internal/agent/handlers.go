package agent

import "context"

// TriageInput is the validated argument payload handed to the
// categorize_and_triage handler. TicketID always comes from RunParams,
// never from the reasoning engine.
type TriageInput struct {
	TicketID     string `json:"ticket_id"`
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	CategoryHint string `json:"category_hint,omitempty"`
	TenantUserID string `json:"tenant_user_id,omitempty"`
}

type TriageResult struct {
	Category            string   `json:"category"`
	Priority            string   `json:"priority"`
	RequiresHumanReview bool     `json:"requires_human_review"`
	Summary             string   `json:"summary"`
	Checklist           []string `json:"checklist"`
	SuggestedAssigneeID string   `json:"suggested_assignee_id,omitempty"`
	TenantUserID        string   `json:"tenant_user_id,omitempty"`
}

type ContractorSearchInput struct {
	TicketID   string `json:"ticket_id"`
	Specialty  string `json:"specialty"`
	PostalCode string `json:"postal_code,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

type ContractorMatch struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone,omitempty"`
	Email       string  `json:"email,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	DistanceKm  float64 `json:"distance_km,omitempty"`
	Source      string  `json:"source"`
}

type ContractorSearchResult struct {
	Contractors []ContractorMatch `json:"contractors"`
}

type TriageHandler func(ctx context.Context, input TriageInput) (*TriageResult, error)

type ContractorSearchHandler func(ctx context.Context, input ContractorSearchInput) (*ContractorSearchResult, error)

// Handlers supplies the real effect behind each tool. CategorizeAndTriage is
// mandatory; a run refuses to start without it. SearchContractors may be nil,
// in which case an engine call to that tool produces a soft error record.
type Handlers struct {
	CategorizeAndTriage TriageHandler
	SearchContractors   ContractorSearchHandler
}
