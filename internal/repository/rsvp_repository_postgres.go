package repository

import (
	"context"

	"github.com/weddingcard/server/internal/models"
)

// RSVPRepositoryPostgres handles attendance replies for PostgreSQL
type RSVPRepositoryPostgres struct {
	db DBTX
}

// NewRSVPRepositoryPostgres creates a new RSVPRepositoryPostgres
func NewRSVPRepositoryPostgres(db DBTX) *RSVPRepositoryPostgres {
	return &RSVPRepositoryPostgres{db: db}
}

// List retrieves all replies, newest first
func (r *RSVPRepositoryPostgres) List(ctx context.Context) ([]models.RSVP, error) {
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
func (r *RSVPRepositoryPostgres) Add(ctx context.Context, rsvp *models.RSVP) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rsvp (id, name, phone, attendance, guest_count, side, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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
