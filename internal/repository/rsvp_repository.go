package repository

import (
	"context"
	"database/sql"

	"github.com/weddingcard/server/internal/models"
)

// RSVPRepository handles attendance reply persistence
type RSVPRepository struct {
	db DBTX
}

// NewRSVPRepository creates a new RSVPRepository
func NewRSVPRepository(db DBTX) *RSVPRepository {
	return &RSVPRepository{db: db}
}

// List retrieves all replies, newest first
func (r *RSVPRepository) List(ctx context.Context) ([]models.RSVP, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, phone, attendance, guest_count, side, message, created_at
		FROM rsvp
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRSVPs(rows)
}

// Add inserts a new reply
func (r *RSVPRepository) Add(ctx context.Context, rsvp *models.RSVP) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rsvp (id, name, phone, attendance, guest_count, side, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rsvp.ID,
		rsvp.Name,
		rsvp.Phone,
		string(rsvp.Attendance),
		rsvp.GuestCount,
		string(rsvp.Side),
		rsvp.Message,
		rsvp.CreatedAt.UTC(),
	)
	return err
}

func scanRSVPs(rows *sql.Rows) ([]models.RSVP, error) {
	replies := []models.RSVP{}
	for rows.Next() {
		var r models.RSVP
		var attendance, side string
		if err := rows.Scan(
			&r.ID,
			&r.Name,
			&r.Phone,
			&attendance,
			&r.GuestCount,
			&side,
			&r.Message,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Attendance = models.Attendance(attendance)
		r.Side = models.Side(side)
		r.CreatedAt = r.CreatedAt.UTC()
		replies = append(replies, r)
	}

	return replies, rows.Err()
}
