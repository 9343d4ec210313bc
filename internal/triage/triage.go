// Package triage implements the categorize_and_triage tool handler: a
// keyword classifier that turns a validated ticket payload into a category,
// priority, summary and checklist, and persists the outcome on the ticket.
package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/db"
	"github.com/user/propdesk/internal/profile"
)

type Service struct {
	tickets  *db.TicketRepo
	profiles *profile.Registry
}

func NewService(tickets *db.TicketRepo, profiles *profile.Registry) *Service {
	return &Service{tickets: tickets, profiles: profiles}
}

var categoryKeywords = map[string][]string{
	"MAINTENANCE": {"leak", "faucet", "pipe", "broken", "repair", "heat", "heating", "boiler", "mold", "clog", "drain", "electrical", "outlet", "appliance", "window", "door", "lock", "pest"},
	"BILLING":     {"invoice", "rent", "payment", "charge", "refund", "bill", "fee", "deposit", "overcharged"},
	"COMPLAINT":   {"noise", "complaint", "neighbor", "loud", "smoking", "party", "harass"},
	"LEASE":       {"lease", "renewal", "renew", "terminate", "termination", "move out", "moving out", "sublet", "transfer"},
}

var urgentKeywords = []string{"flood", "flooding", "fire", "gas", "smoke", "burst", "sewage", "emergency", "sparking"}

var highKeywords = []string{"no heat", "no hot water", "no water", "no power", "no electricity", "locked out", "leaking badly"}

var reviewKeywords = []string{"lawyer", "legal", "sue", "lawsuit", "court", "injury", "injured", "unsafe", "harass", "discriminat"}

// CategorizeAndTriage satisfies agent.TriageHandler. The input has already
// passed schema validation and carries the caller's ticket id.
func (s *Service) CategorizeAndTriage(ctx context.Context, input agent.TriageInput) (*agent.TriageResult, error) {
	text := strings.ToLower(input.Subject + " " + input.Description)

	category := classify(text, input.CategoryHint)
	priority := prioritize(text, category)

	result := &agent.TriageResult{
		Category:            category,
		Priority:            priority,
		RequiresHumanReview: needsReview(text),
		Summary:             buildSummary(input),
		Checklist:           []string{},
		TenantUserID:        input.TenantUserID,
	}

	if s.profiles != nil {
		if p := s.profiles.ByCategory(category); p != nil {
			result.Checklist = append(result.Checklist, p.Checklist...)
			result.SuggestedAssigneeID = p.AssigneeID
		}
	}

	if s.tickets != nil {
		err := s.tickets.ApplyTriage(ctx, input.TicketID, result.Category, result.Priority, result.Summary,
			result.RequiresHumanReview, result.Checklist, result.SuggestedAssigneeID)
		if err != nil {
			return nil, fmt.Errorf("persist triage: %w", err)
		}
	}

	return result, nil
}

func classify(text, hint string) string {
	best := ""
	bestHits := 0
	for _, category := range agent.TicketCategories {
		hits := 0
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = category
			bestHits = hits
		}
	}
	if best != "" {
		return best
	}
	hint = strings.ToUpper(strings.TrimSpace(hint))
	for _, category := range agent.TicketCategories {
		if category == hint {
			return hint
		}
	}
	return "GENERAL"
}

func prioritize(text, category string) string {
	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			return "URGENT"
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(text, kw) {
			return "HIGH"
		}
	}
	if category == "MAINTENANCE" {
		return "MEDIUM"
	}
	return "LOW"
}

func needsReview(text string) bool {
	for _, kw := range reviewKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func buildSummary(input agent.TriageInput) string {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		subject = "untitled issue"
	}
	return "Tenant reports: " + subject
}
