package services

import (
	"context"
	"fmt"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/repository"
)

// RSVPService stores attendance replies
type RSVPService struct {
	repo    repository.RSVPRepo
	metrics *observability.BusinessMetrics
}

// NewRSVPService creates a new RSVPService
func NewRSVPService(repo repository.RSVPRepo, metrics *observability.BusinessMetrics) *RSVPService {
	return &RSVPService{repo: repo, metrics: metrics}
}

// Submit validates and stores a reply
func (s *RSVPService) Submit(ctx context.Context, req models.RSVPRequest) (*models.RSVP, error) {
	ctx, span := observability.StartServiceSpan(ctx, "RSVPService", "Submit")
	defer span.End()

	rsvp, err := models.NewRSVP(req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if err := s.repo.Add(ctx, rsvp); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to save rsvp: %w", err)
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"rsvp_id":    rsvp.ID,
		"attendance": string(rsvp.Attendance),
		"guests":     rsvp.GuestCount,
	}).Info("RSVP received")
	s.metrics.RecordRSVP(ctx, string(rsvp.Attendance), string(rsvp.Side), rsvp.GuestCount)

	observability.SetSuccess(span)
	return rsvp, nil
}

// List returns every reply with the number of attending guests
func (s *RSVPService) List(ctx context.Context) (*models.RSVPListResponse, error) {
	replies, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rsvps: %w", err)
	}

	guests := 0
	for _, r := range replies {
		if r.Attendance == models.AttendanceAttending {
			guests += r.GuestCount
		}
	}

	return &models.RSVPListResponse{
		Replies:    replies,
		TotalCount: len(replies),
		Guests:     guests,
	}, nil
}
