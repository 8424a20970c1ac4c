package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingcard/server/internal/models"
)

type memRSVP struct {
	replies []models.RSVP
	err     error
}

func (m *memRSVP) List(ctx context.Context) ([]models.RSVP, error) {
	return m.replies, m.err
}

func (m *memRSVP) Add(ctx context.Context, r *models.RSVP) error {
	if m.err != nil {
		return m.err
	}
	m.replies = append([]models.RSVP{*r}, m.replies...)
	return nil
}

func TestRSVPService(t *testing.T) {
	ctx := context.Background()
	repo := &memRSVP{}
	svc := NewRSVPService(repo, nil)

	_, err := svc.Submit(ctx, models.RSVPRequest{Name: "A", Phone: "010", Attendance: "attending", GuestCount: 3, Side: "groom"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, models.RSVPRequest{Name: "B", Phone: "011", Attendance: "not-attending", GuestCount: 2, Side: "bride"})
	require.NoError(t, err)

	t.Run("rejects invalid replies", func(t *testing.T) {
		_, err := svc.Submit(ctx, models.RSVPRequest{Name: "C", Phone: "012", Attendance: "maybe", GuestCount: 1, Side: "groom"})
		assert.ErrorIs(t, err, models.ErrRSVPAttendance)
		_, err = svc.Submit(ctx, models.RSVPRequest{Name: "C", Phone: "012", Attendance: "attending", GuestCount: 0, Side: "groom"})
		assert.ErrorIs(t, err, models.ErrRSVPGuestCount)
	})

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalCount)
	assert.Equal(t, 3, list.Guests, "only attending guests are counted")
	assert.Equal(t, "B", list.Replies[0].Name)

	t.Run("storage failure", func(t *testing.T) {
		repo.err = errors.New("closed")
		_, err := svc.List(ctx)
		assert.Error(t, err)
	})
}
