package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attendance is a guest's answer to the invitation
type Attendance string

const (
	AttendanceAttending    Attendance = "attending"
	AttendanceNotAttending Attendance = "not-attending"
	AttendanceUndecided    Attendance = "undecided"
)

// RSVP is a stored attendance reply
type RSVP struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Attendance Attendance `json:"attendance"`
	GuestCount int        `json:"guestCount"`
	Side       Side       `json:"side"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// RSVPRequest is the request body for an attendance reply
type RSVPRequest struct {
	Name       string `json:"name" validate:"required,max=50"`
	Phone      string `json:"phone" validate:"required,max=20"`
	Attendance string `json:"attendance" validate:"required,oneof=attending not-attending undecided"`
	GuestCount int    `json:"guestCount" validate:"min=1,max=10"`
	Side       string `json:"side" validate:"required,oneof=groom bride"`
	Message    string `json:"message,omitempty" validate:"max=500"`
}

// NewRSVP validates a request and builds the record to store
func NewRSVP(req RSVPRequest) (*RSVP, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Attendance = strings.TrimSpace(req.Attendance)
	req.Side = strings.TrimSpace(req.Side)
	req.Message = strings.TrimSpace(req.Message)

	err := fieldErrors(validate.Struct(req), map[string]error{
		"Name":       ErrRSVPName,
		"Phone":      ErrRSVPPhone,
		"Attendance": ErrRSVPAttendance,
		"GuestCount": ErrRSVPGuestCount,
		"Side":       ErrRSVPSide,
		"Message":    ErrRSVPMessage,
	}, ErrInvalidRSVP)
	if err != nil {
		return nil, err
	}

	return &RSVP{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Phone:      req.Phone,
		Attendance: Attendance(req.Attendance),
		GuestCount: req.GuestCount,
		Side:       Side(req.Side),
		Message:    req.Message,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// RSVPError is returned for invalid attendance replies
type RSVPError struct {
	Message string
}

func (e RSVPError) Error() string {
	return e.Message
}

var (
	ErrRSVPName       = RSVPError{"name is required (max 50 characters)"}
	ErrRSVPPhone      = RSVPError{"phone is required (max 20 characters)"}
	ErrRSVPAttendance = RSVPError{"attendance must be attending, not-attending or undecided"}
	ErrRSVPGuestCount = RSVPError{"guest count must be between 1 and 10"}
	ErrRSVPSide       = RSVPError{"side must be groom or bride"}
	ErrRSVPMessage    = RSVPError{"message must be at most 500 characters"}
	ErrInvalidRSVP    = RSVPError{"invalid rsvp"}
)
