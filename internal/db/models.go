package db

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Ticket is an inbound request from a tenant (maintenance, billing, complaint...).
// Category/priority fields are empty until a triage run fills them in.
type Ticket struct {
	ID                  string    `json:"id"`
	Subject             string    `json:"subject"`
	Summary             string    `json:"summary"`
	Status              string    `json:"status"`
	Category            string    `json:"category,omitempty"`
	Priority            string    `json:"priority,omitempty"`
	RequiresHumanReview bool      `json:"requires_human_review"`
	AssigneeID          string    `json:"assignee_id,omitempty"`
	TenantUserID        string    `json:"tenant_user_id,omitempty"`
	PostalCode          string    `json:"postal_code,omitempty"`
	Checklist           []string  `json:"checklist"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type TicketMessage struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Direction  string    `json:"direction"`
	Channel    string    `json:"channel"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

type Contractor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Specialty   string    `json:"specialty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	PostalCode  string    `json:"postal_code,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	ReviewCount int       `json:"review_count,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AgentEvent is one audit row written by the agent's event logger: either a
// completed triage or a single tool execution, with its input/output payloads
// stored as JSON text.
type AgentEvent struct {
	ID        string `json:"id"`
	TicketID  string `json:"ticket_id"`
	EventType string `json:"event_type"`
	CallID    string `json:"call_id,omitempty"`
	Tool      string `json:"tool,omitempty"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
	CreatedAt string `json:"created_at"`
}

type TicketFilter struct {
	Status   string
	Category string
}

type ContractorFilter struct {
	Specialty  string
	PostalCode string
	ActiveOnly bool
}

func NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = nowUTC()
	}
	return ts.UTC().Format(time.RFC3339)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}

func encodeStringSlice(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	buf, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string slice: %w", err)
	}
	return string(buf), nil
}

func decodeStringSlice(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode string slice %q: %w", raw, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
