package db

import (
	"context"
	"database/sql"
	"fmt"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *TicketMessage) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("message repo unavailable")
	}
	if msg == nil {
		return fmt.Errorf("message is required")
	}
	if msg.TicketID == "" {
		return fmt.Errorf("ticket id is required")
	}
	if msg.Body == "" {
		return fmt.Errorf("body is required")
	}
	if msg.Direction == "" {
		msg.Direction = "inbound"
	}
	if msg.Channel == "" {
		msg.Channel = "email"
	}
	if msg.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		msg.ID = id
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = nowUTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ticket_messages (id, ticket_id, direction, channel, author_name, body, sent_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, msg.ID, msg.TicketID, msg.Direction, msg.Channel, msg.AuthorName, msg.Body, formatTimestamp(msg.SentAt))
	if err != nil {
		return fmt.Errorf("insert ticket message: %w", err)
	}
	return nil
}

// ListByTicket returns up to limit of the most recent messages, oldest first.
func (r *MessageRepo) ListByTicket(ctx context.Context, ticketID string, limit int) ([]*TicketMessage, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("message repo unavailable")
	}
	if ticketID == "" {
		return nil, fmt.Errorf("ticket id is required")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticket_id, direction, channel, author_name, body, sent_at
FROM ticket_messages
WHERE ticket_id = ?
ORDER BY sent_at DESC
LIMIT ?
`, ticketID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	defer rows.Close()

	items := make([]*TicketMessage, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket message: %w", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket messages: %w", err)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// Latest returns the most recent message for a ticket, or nil when none exist.
func (r *MessageRepo) Latest(ctx context.Context, ticketID string) (*TicketMessage, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("message repo unavailable")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, ticket_id, direction, channel, author_name, body, sent_at
FROM ticket_messages
WHERE ticket_id = ?
ORDER BY sent_at DESC
LIMIT 1
`, ticketID)
	msg, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest ticket message: %w", err)
	}
	return msg, nil
}

func scanMessage(row rowScanner) (*TicketMessage, error) {
	var m TicketMessage
	var sentAtRaw string
	if err := row.Scan(&m.ID, &m.TicketID, &m.Direction, &m.Channel, &m.AuthorName, &m.Body, &sentAtRaw); err != nil {
		return nil, err
	}
	var err error
	if m.SentAt, err = parseTimestamp(sentAtRaw); err != nil {
		return nil, err
	}
	return &m, nil
}
