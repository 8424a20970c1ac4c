package repository

import (
	"context"
	"database/sql"

	"github.com/weddingcard/server/internal/models"
)

// DBTX is the query surface shared by *sql.DB and *observability.TraceDB
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GuestbookRepo defines the interface for guestbook persistence operations
type GuestbookRepo interface {
	// List returns every entry, newest first
	List(ctx context.Context) ([]models.GuestbookEntry, error)
	Add(ctx context.Context, entry *models.GuestbookEntry) error
	Count(ctx context.Context) (int, error)
}

// RSVPRepo defines the interface for attendance reply persistence
type RSVPRepo interface {
	// List returns every reply, newest first
	List(ctx context.Context) ([]models.RSVP, error)
	Add(ctx context.Context, rsvp *models.RSVP) error
}
