package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Side identifies which family a guest belongs to
type Side string

const (
	SideGroom Side = "groom"
	SideBride Side = "bride"
	SideBoth  Side = "both"
)

// IsValidSide checks if a side value is valid. Empty is allowed.
func IsValidSide(s string) bool {
	switch Side(s) {
	case "", SideGroom, SideBride, SideBoth:
		return true
	}
	return false
}

// GuestbookEntry is a congratulation message left by a guest
type GuestbookEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	Side      Side      `json:"side,omitempty"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
}

// HasPhoto reports whether the entry carries a photo reference
func (e GuestbookEntry) HasPhoto() bool {
	return strings.TrimSpace(e.PhotoURL) != ""
}

// CreateGuestbookRequest is the request body for a new guestbook entry
type CreateGuestbookRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Message  string `json:"message" validate:"required,max=1000"`
	Side     string `json:"side,omitempty" validate:"omitempty,oneof=groom bride both"`
	PhotoURL string `json:"photoUrl,omitempty" validate:"omitempty,uri,max=2048"`
}

// Normalize trims whitespace from all text fields
func (r *CreateGuestbookRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Message = strings.TrimSpace(r.Message)
	r.Side = strings.TrimSpace(r.Side)
	r.PhotoURL = strings.TrimSpace(r.PhotoURL)
}

// Validate checks the request and returns the matching guestbook error
func (r *CreateGuestbookRequest) Validate() error {
	return fieldErrors(validate.Struct(r), map[string]error{
		"Name.required":    ErrEmptyName,
		"Name.max":         ErrNameTooLong,
		"Message.required": ErrEmptyMessage,
		"Message.max":      ErrMessageTooLong,
		"Side":             ErrInvalidSide,
		"PhotoURL":         ErrInvalidPhotoURL,
	}, ErrInvalidGuestbookEntry)
}

// NewGuestbookEntry creates a new entry with validation and a fresh ID
func NewGuestbookEntry(req CreateGuestbookRequest) (*GuestbookEntry, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &GuestbookEntry{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Message:   req.Message,
		CreatedAt: time.Now().UTC(),
		Side:      Side(req.Side),
		PhotoURL:  req.PhotoURL,
	}, nil
}

// GuestbookSnapshot is one delivery of a live guestbook subscription.
// Entries are ordered newest first. Err is set when the read failed;
// Entries then holds the last good snapshot, if any.
type GuestbookSnapshot struct {
	Entries []GuestbookEntry
	Err     error
}

// GuestbookError is returned for invalid guestbook input
type GuestbookError struct {
	Message string
}

func (e GuestbookError) Error() string {
	return e.Message
}

var (
	ErrEmptyName             = GuestbookError{"name is required"}
	ErrNameTooLong           = GuestbookError{"name must be at most 50 characters"}
	ErrEmptyMessage          = GuestbookError{"message is required"}
	ErrMessageTooLong        = GuestbookError{"message must be at most 1000 characters"}
	ErrInvalidSide           = GuestbookError{"side must be groom, bride or both"}
	ErrInvalidPhotoURL       = GuestbookError{"photo url is not valid"}
	ErrInvalidGuestbookEntry = GuestbookError{"invalid guestbook entry"}
)
