package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

func (r *TicketRepo) Create(ctx context.Context, ticket *Ticket) error {
	if ticket.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		ticket.ID = id
	}
	if ticket.Status == "" {
		ticket.Status = "open"
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = nowUTC()
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	checklist, err := encodeStringSlice(ticket.Checklist)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO tickets (id, subject, summary, status, category, priority, requires_human_review, assignee_id, tenant_user_id, postal_code, checklist, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, ticket.ID, ticket.Subject, ticket.Summary, ticket.Status, ticket.Category, ticket.Priority, boolToInt(ticket.RequiresHumanReview),
		ticket.AssigneeID, ticket.TenantUserID, ticket.PostalCode, checklist,
		formatTimestamp(ticket.CreatedAt), formatTimestamp(ticket.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (r *TicketRepo) Get(ctx context.Context, id string) (*Ticket, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, subject, summary, status, category, priority, requires_human_review, assignee_id, tenant_user_id, postal_code, checklist, created_at, updated_at
FROM tickets
WHERE id = ?
`, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ticket %q: %w", id, err)
	}
	return ticket, nil
}

func (r *TicketRepo) List(ctx context.Context, filter TicketFilter) ([]*Ticket, error) {
	query := `SELECT id, subject, summary, status, category, priority, requires_human_review, assignee_id, tenant_user_id, postal_code, checklist, created_at, updated_at FROM tickets`
	args := []any{}
	where := []string{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

// ApplyTriage writes a triage outcome onto the ticket row and flips its status
// to triaged. Called by the categorize_and_triage tool handler.
func (r *TicketRepo) ApplyTriage(ctx context.Context, id string, category, priority, summary string, requiresHumanReview bool, checklist []string, assigneeID string) error {
	encoded, err := encodeStringSlice(checklist)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE tickets
SET category = ?, priority = ?, summary = ?, requires_human_review = ?, checklist = ?, assignee_id = ?, status = 'triaged', updated_at = ?
WHERE id = ?
`, category, priority, summary, boolToInt(requiresHumanReview), encoded, assigneeID, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to apply triage to ticket %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check triage update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("ticket %q not found", id)
	}
	return nil
}

func (r *TicketRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?
`, status, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("ticket %q not found", id)
	}
	return nil
}

func (r *TicketRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket %q: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*Ticket, error) {
	var t Ticket
	var review int
	var checklistRaw, createdAtRaw, updatedAtRaw string

	err := row.Scan(&t.ID, &t.Subject, &t.Summary, &t.Status, &t.Category, &t.Priority, &review,
		&t.AssigneeID, &t.TenantUserID, &t.PostalCode, &checklistRaw, &createdAtRaw, &updatedAtRaw)
	if err != nil {
		return nil, err
	}
	t.RequiresHumanReview = review != 0
	if t.Checklist, err = decodeStringSlice(checklistRaw); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTimestamp(createdAtRaw); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTimestamp(updatedAtRaw); err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
