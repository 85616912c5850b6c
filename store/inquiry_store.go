// api/store/inquiry_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nottinghamcompanions/website-api/models"
)

// ErrInquiryNotFound is returned when an inquiry id does not exist.
var ErrInquiryNotFound = errors.New("inquiry not found")

type InquiryStore struct {
	db *sql.DB
}

// NewInquiryStore creates a new InquiryStore instance.
func NewInquiryStore(db *sql.DB) *InquiryStore {
	return &InquiryStore{db: db}
}

// InitSchema creates the inquiries table and its indexes if they are missing.
func (s *InquiryStore) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS inquiries (
			id                   TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			email                TEXT NOT NULL,
			phone                TEXT NOT NULL,
			service_type         TEXT NOT NULL,
			message              TEXT NOT NULL,
			preferred_date       TIMESTAMPTZ,
			preferred_time       TEXT NOT NULL DEFAULT '',
			duration             TEXT NOT NULL DEFAULT '',
			location             TEXT NOT NULL,
			budget               TEXT NOT NULL DEFAULT '',
			special_requirements TEXT NOT NULL DEFAULT '',
			utm_source           TEXT NOT NULL DEFAULT '',
			utm_medium           TEXT NOT NULL DEFAULT '',
			utm_campaign         TEXT NOT NULL DEFAULT '',
			status               TEXT NOT NULL DEFAULT 'new',
			source               TEXT NOT NULL DEFAULT 'website',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_inquiries_status_created ON inquiries (status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_inquiries_service_created ON inquiries (service_type, created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create inquiries schema: %w", err)
	}
	return nil
}

// Create inserts a new inquiry and fills in its timestamps.
func (s *InquiryStore) Create(ctx context.Context, inq *models.Inquiry) error {
	query := `
		INSERT INTO inquiries (
			id, name, email, phone, service_type, message,
			preferred_date, preferred_time, duration, location, budget,
			special_requirements, utm_source, utm_medium, utm_campaign, status, source
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query,
		inq.ID, inq.Name, inq.Email, inq.Phone, inq.ServiceType, inq.Message,
		inq.PreferredDate, inq.PreferredTime, inq.Duration, inq.Location, inq.Budget,
		inq.SpecialRequirements, inq.UTMSource, inq.UTMMedium, inq.UTMCampaign, inq.Status, inq.Source,
	).Scan(&inq.CreatedAt, &inq.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inquiry: %w", err)
	}
	return nil
}

// List returns inquiries newest first, up to limit.
func (s *InquiryStore) List(ctx context.Context, limit int) ([]models.Inquiry, error) {
	query := `
		SELECT id, name, email, phone, service_type, message,
		       preferred_date, preferred_time, duration, location, budget,
		       special_requirements, utm_source, utm_medium, utm_campaign,
		       status, source, created_at, updated_at
		FROM inquiries
		ORDER BY created_at DESC
		LIMIT $1;
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inquiries: %w", err)
	}
	defer rows.Close()

	var inquiries []models.Inquiry
	for rows.Next() {
		var inq models.Inquiry
		var preferredDate sql.NullTime
		err := rows.Scan(
			&inq.ID, &inq.Name, &inq.Email, &inq.Phone, &inq.ServiceType, &inq.Message,
			&preferredDate, &inq.PreferredTime, &inq.Duration, &inq.Location, &inq.Budget,
			&inq.SpecialRequirements, &inq.UTMSource, &inq.UTMMedium, &inq.UTMCampaign,
			&inq.Status, &inq.Source, &inq.CreatedAt, &inq.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inquiry row: %w", err)
		}
		if preferredDate.Valid {
			inq.PreferredDate = &preferredDate.Time
		}
		inquiries = append(inquiries, inq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during inquiries query: %w", err)
	}
	return inquiries, nil
}

// UpdateStatus moves an inquiry to a new lifecycle state.
func (s *InquiryStore) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inquiries SET status = $2, updated_at = NOW() WHERE id = $1;`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update inquiry %q status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for inquiry %q: %w", id, err)
	}
	if affected == 0 {
		return ErrInquiryNotFound
	}
	return nil
}

// Delete removes an inquiry.
func (s *InquiryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inquiries WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inquiry %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for inquiry %q: %w", id, err)
	}
	if affected == 0 {
		return ErrInquiryNotFound
	}
	return nil
}
