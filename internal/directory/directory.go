// Package directory implements the search_contractors tool handler. Matches
// come from the internal contractor table first, topped up from an optional
// external directory service, capped at five entries.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/db"
)

const maxMatches = 5

type Service struct {
	contractors *db.ContractorRepo
	external    *ExternalClient
}

func NewService(contractors *db.ContractorRepo, external *ExternalClient) *Service {
	return &Service{contractors: contractors, external: external}
}

// Search satisfies agent.ContractorSearchHandler. An empty specialty yields
// an empty result rather than an error, so the engine can retry with a
// better query.
func (s *Service) Search(ctx context.Context, input agent.ContractorSearchInput) (*agent.ContractorSearchResult, error) {
	result := &agent.ContractorSearchResult{Contractors: []agent.ContractorMatch{}}

	specialty := strings.ToLower(strings.TrimSpace(input.Specialty))
	if specialty == "" {
		return result, nil
	}

	limit := input.MaxResults
	if limit <= 0 || limit > maxMatches {
		limit = maxMatches
	}

	if s.contractors != nil {
		internal, err := s.contractors.List(ctx, db.ContractorFilter{Specialty: specialty, ActiveOnly: true})
		if err != nil {
			return nil, fmt.Errorf("internal contractor lookup: %w", err)
		}
		for _, c := range internal {
			if len(result.Contractors) >= limit {
				break
			}
			result.Contractors = append(result.Contractors, agent.ContractorMatch{
				ID:          c.ID,
				Name:        c.Name,
				Phone:       c.Phone,
				Email:       c.Email,
				Rating:      c.Rating,
				ReviewCount: c.ReviewCount,
				Source:      "internal",
			})
		}
	}

	if s.external != nil && len(result.Contractors) < limit {
		external, err := s.external.Search(ctx, specialty, input.PostalCode, limit-len(result.Contractors))
		if err != nil {
			return nil, fmt.Errorf("external contractor lookup: %w", err)
		}
		result.Contractors = append(result.Contractors, external...)
	}

	if len(result.Contractors) > limit {
		result.Contractors = result.Contractors[:limit]
	}
	return result, nil
}
