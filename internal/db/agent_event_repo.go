package db

import (
	"context"
	"database/sql"
	"fmt"
)

type AgentEventRepo struct {
	db *sql.DB
}

func NewAgentEventRepo(db *sql.DB) *AgentEventRepo {
	return &AgentEventRepo{db: db}
}

func (r *AgentEventRepo) Create(ctx context.Context, event *AgentEvent) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("agent event repo unavailable")
	}
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.TicketID == "" {
		return fmt.Errorf("ticket id is required")
	}
	if event.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if event.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		event.ID = id
	}
	if event.CreatedAt == "" {
		event.CreatedAt = formatTimestamp(nowUTC())
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO agent_events (id, ticket_id, event_type, call_id, tool, input, output, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, event.ID, event.TicketID, event.EventType, event.CallID, event.Tool, event.Input, event.Output, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert agent event: %w", err)
	}
	return nil
}

func (r *AgentEventRepo) ListByTicket(ctx context.Context, ticketID string, limit int) ([]*AgentEvent, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("agent event repo unavailable")
	}
	if ticketID == "" {
		return nil, fmt.Errorf("ticket id is required")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticket_id, event_type, call_id, tool, input, output, created_at
FROM agent_events
WHERE ticket_id = ?
ORDER BY created_at DESC
LIMIT ?
`, ticketID, limit)
	if err != nil {
		return nil, fmt.Errorf("list agent events: %w", err)
	}
	defer rows.Close()

	items := make([]*AgentEvent, 0)
	for rows.Next() {
		event := &AgentEvent{}
		if err := rows.Scan(&event.ID, &event.TicketID, &event.EventType, &event.CallID, &event.Tool, &event.Input, &event.Output, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent event: %w", err)
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent events: %w", err)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}
