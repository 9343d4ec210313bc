package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type ContractorRepo struct {
	db *sql.DB
}

func NewContractorRepo(db *sql.DB) *ContractorRepo {
	return &ContractorRepo{db: db}
}

func (r *ContractorRepo) Create(ctx context.Context, c *Contractor) error {
	if c == nil {
		return fmt.Errorf("contractor is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Specialty == "" {
		return fmt.Errorf("specialty is required")
	}
	if c.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		c.ID = id
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO contractors (id, name, specialty, phone, email, postal_code, rating, review_count, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID, c.Name, strings.ToLower(strings.TrimSpace(c.Specialty)), c.Phone, c.Email, c.PostalCode,
		c.Rating, c.ReviewCount, boolToInt(c.Active), formatTimestamp(c.CreatedAt), formatTimestamp(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create contractor: %w", err)
	}
	return nil
}

func (r *ContractorRepo) Get(ctx context.Context, id string) (*Contractor, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, specialty, phone, email, postal_code, rating, review_count, active, created_at, updated_at
FROM contractors
WHERE id = ?
`, id)
	c, err := scanContractor(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contractor %q: %w", id, err)
	}
	return c, nil
}

func (r *ContractorRepo) List(ctx context.Context, filter ContractorFilter) ([]*Contractor, error) {
	query := `SELECT id, name, specialty, phone, email, postal_code, rating, review_count, active, created_at, updated_at FROM contractors`
	args := []any{}
	where := []string{}
	if filter.Specialty != "" {
		where = append(where, "specialty = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Specialty)))
	}
	if filter.PostalCode != "" {
		where = append(where, "postal_code = ?")
		args = append(args, filter.PostalCode)
	}
	if filter.ActiveOnly {
		where = append(where, "active = 1")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rating DESC, review_count DESC, name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contractors: %w", err)
	}
	defer rows.Close()

	contractors := make([]*Contractor, 0)
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contractor: %w", err)
		}
		contractors = append(contractors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contractors: %w", err)
	}
	return contractors, nil
}

func (r *ContractorRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contractors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contractor %q: %w", id, err)
	}
	return nil
}

func scanContractor(row rowScanner) (*Contractor, error) {
	var c Contractor
	var active int
	var createdAtRaw, updatedAtRaw string
	err := row.Scan(&c.ID, &c.Name, &c.Specialty, &c.Phone, &c.Email, &c.PostalCode,
		&c.Rating, &c.ReviewCount, &active, &createdAtRaw, &updatedAtRaw)
	if err != nil {
		return nil, err
	}
	c.Active = active != 0
	if c.CreatedAt, err = parseTimestamp(createdAtRaw); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAtRaw); err != nil {
		return nil, err
	}
	return &c, nil
}
