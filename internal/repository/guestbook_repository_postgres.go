package repository

import (
	"context"

	"github.com/weddingcard/server/internal/models"
)

// GuestbookRepositoryPostgres handles guestbook persistence for PostgreSQL
type GuestbookRepositoryPostgres struct {
	db DBTX
}

// NewGuestbookRepositoryPostgres creates a new GuestbookRepositoryPostgres
func NewGuestbookRepositoryPostgres(db DBTX) *GuestbookRepositoryPostgres {
	return &GuestbookRepositoryPostgres{db: db}
}

// List retrieves all entries, newest first
func (r *GuestbookRepositoryPostgres) List(ctx context.Context) ([]models.GuestbookEntry, error) {
	query := `
		SELECT id, name, message, side, photo_url, created_at
		FROM guestbook
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGuestbookEntries(rows)
}

// Add inserts a new entry
func (r *GuestbookRepositoryPostgres) Add(ctx context.Context, entry *models.GuestbookEntry) error {
	query := `
		INSERT INTO guestbook (id, name, message, side, photo_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Name,
		entry.Message,
		string(entry.Side),
		entry.PhotoURL,
		entry.CreatedAt.UTC(),
	)

	return err
}

// Count returns the total number of entries
func (r *GuestbookRepositoryPostgres) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM guestbook").Scan(&count)
	return count, err
}
