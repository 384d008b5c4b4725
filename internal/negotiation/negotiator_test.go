package negotiation

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testOccurrence() *model.LessonOccurrence {
	return &model.LessonOccurrence{
		ID:        10,
		LessonID:  7,
		StartTime: ts("2024-04-10T15:00:00Z"),
		EndTime:   ts("2024-04-10T15:30:00Z"),
	}
}

func TestPropose(t *testing.T) {
	now := ts("2024-04-01T12:00:00Z")
	slots := []Slot{
		{Start: ts("2024-04-12T16:00:00Z"), End: ts("2024-04-12T16:30:00Z")},
		{Start: ts("2024-04-13T10:00:00Z"), End: ts("2024-04-13T10:30:00Z")},
	}

	n, err := Propose(testOccurrence(), slots, now, 48*time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, int64(7), n.LessonID)
	assert.Equal(t, ts("2024-04-10T15:00:00Z"), n.OriginalStart)
	assert.Equal(t, model.NegotiationPending, n.Status)
	assert.Equal(t, now.Add(48*time.Hour), n.ExpiresAt)

	require.Len(t, n.Proposals, 2)
	for _, p := range n.Proposals {
		assert.NotEqual(t, uuid.Nil, p.ID)
	}
	assert.Equal(t, ts("2024-04-12T16:00:00Z"), n.Proposals[0].StartTime)
}

func TestPropose_Validation(t *testing.T) {
	now := ts("2024-04-01T12:00:00Z")
	good := Slot{Start: ts("2024-04-12T16:00:00Z"), End: ts("2024-04-12T16:30:00Z")}

	t.Run("cancelled occurrence", func(t *testing.T) {
		occ := testOccurrence()
		occ.IsCancelled = true
		_, err := Propose(occ, []Slot{good}, now, 48*time.Hour)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInvalidState))
	})

	t.Run("no slots", func(t *testing.T) {
		_, err := Propose(testOccurrence(), nil, now, 48*time.Hour)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrValidation))
	})

	t.Run("inverted slot", func(t *testing.T) {
		bad := Slot{Start: ts("2024-04-12T16:30:00Z"), End: ts("2024-04-12T16:00:00Z")}
		_, err := Propose(testOccurrence(), []Slot{good, bad}, now, 48*time.Hour)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrValidation))
	})

	t.Run("slot in the past", func(t *testing.T) {
		past := Slot{Start: ts("2024-03-30T16:00:00Z"), End: ts("2024-03-30T16:30:00Z")}
		_, err := Propose(testOccurrence(), []Slot{past}, now, 48*time.Hour)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrValidation))
	})
}

func TestAccept(t *testing.T) {
	now := ts("2024-04-01T12:00:00Z")
	slots := []Slot{
		{Start: ts("2024-04-12T16:00:00Z"), End: ts("2024-04-12T16:30:00Z")},
	}
	n, err := Propose(testOccurrence(), slots, now, 48*time.Hour)
	require.NoError(t, err)

	proposal, err := Accept(n, n.Proposals[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ts("2024-04-12T16:00:00Z"), proposal.StartTime)
	assert.Equal(t, ts("2024-04-12T16:30:00Z"), proposal.EndTime)
}

func TestAccept_UnknownProposal(t *testing.T) {
	n, err := Propose(testOccurrence(),
		[]Slot{{Start: ts("2024-04-12T16:00:00Z"), End: ts("2024-04-12T16:30:00Z")}},
		ts("2024-04-01T12:00:00Z"), 48*time.Hour)
	require.NoError(t, err)

	_, err = Accept(n, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestAccept_ClosedNegotiation(t *testing.T) {
	n, err := Propose(testOccurrence(),
		[]Slot{{Start: ts("2024-04-12T16:00:00Z"), End: ts("2024-04-12T16:30:00Z")}},
		ts("2024-04-01T12:00:00Z"), 48*time.Hour)
	require.NoError(t, err)

	for _, status := range []model.NegotiationStatus{
		model.NegotiationAccepted, model.NegotiationDeclined, model.NegotiationExpired,
	} {
		n.Status = status
		_, err = Accept(n, n.Proposals[0].ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInvalidState))
	}
}

func TestDecline(t *testing.T) {
	n, err := Propose(testOccurrence(),
		[]Slot{{Start: ts("2024-04-12T16:00:00Z"), End: ts("2024-04-12T16:30:00Z")}},
		ts("2024-04-01T12:00:00Z"), 48*time.Hour)
	require.NoError(t, err)

	require.NoError(t, Decline(n))

	n.Status = model.NegotiationDeclined
	err = Decline(n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidState))
}
