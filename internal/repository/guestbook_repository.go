package repository

import (
	"context"
	"database/sql"

	"github.com/weddingcard/server/internal/models"
)

// GuestbookRepository handles guestbook persistence
type GuestbookRepository struct {
	db DBTX
}

// NewGuestbookRepository creates a new GuestbookRepository
func NewGuestbookRepository(db DBTX) *GuestbookRepository {
	return &GuestbookRepository{db: db}
}

// List retrieves all entries, newest first
func (r *GuestbookRepository) List(ctx context.Context) ([]models.GuestbookEntry, error) {
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
func (r *GuestbookRepository) Add(ctx context.Context, entry *models.GuestbookEntry) error {
	query := `
		INSERT INTO guestbook (id, name, message, side, photo_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
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
func (r *GuestbookRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM guestbook").Scan(&count)
	return count, err
}

func scanGuestbookEntries(rows *sql.Rows) ([]models.GuestbookEntry, error) {
	entries := []models.GuestbookEntry{}
	for rows.Next() {
		var e models.GuestbookEntry
		var side string
		if err := rows.Scan(
			&e.ID,
			&e.Name,
			&e.Message,
			&side,
			&e.PhotoURL,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Side = models.Side(side)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
