package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/user/propdesk/internal/agent"
)

// ExternalClient queries a third-party contractor directory over REST.
type ExternalClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

type externalContractor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone,omitempty"`
	Email       string  `json:"email,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	DistanceKm  float64 `json:"distance_km,omitempty"`
}

type externalSearchResponse struct {
	Contractors []externalContractor `json:"contractors"`
}

func (c *ExternalClient) Search(ctx context.Context, specialty, postalCode string, limit int) ([]agent.ContractorMatch, error) {
	if c == nil {
		return nil, fmt.Errorf("external directory client is required")
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("external directory base url is required")
	}
	if limit <= 0 {
		return []agent.ContractorMatch{}, nil
	}

	u, err := url.Parse(base + "/v1/contractors")
	if err != nil {
		return nil, fmt.Errorf("invalid external directory url: %w", err)
	}
	query := url.Values{}
	query.Set("specialty", specialty)
	if postalCode != "" {
		query.Set("postal_code", postalCode)
	}
	query.Set("limit", strconv.Itoa(limit))
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.Token))
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("external directory status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out externalSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode external directory response: %w", err)
	}

	matches := make([]agent.ContractorMatch, 0, len(out.Contractors))
	for _, c := range out.Contractors {
		if len(matches) >= limit {
			break
		}
		matches = append(matches, agent.ContractorMatch{
			ID:          c.ID,
			Name:        c.Name,
			Phone:       c.Phone,
			Email:       c.Email,
			Rating:      c.Rating,
			ReviewCount: c.ReviewCount,
			DistanceKm:  c.DistanceKm,
			Source:      "external",
		})
	}
	return matches, nil
}
