//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"expertbooking/internal/domain/meeting"
	"expertbooking/internal/domain/slot"
	"expertbooking/internal/infra"
	"expertbooking/internal/infra/repository"
	"expertbooking/tests/common/builder"
	"expertbooking/tests/common/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMeeting(t *testing.T, expertID uuid.UUID, holder slot.Holder, startAt time.Time, sessionID string) *meeting.Meeting {
	t.Helper()
	m, err := builder.NewMeetingBuilder().
		WithExpertID(expertID).
		WithHolder(holder).
		WithStartAt(startAt).
		WithSessionID(sessionID).
		Build()
	require.NoError(t, err)
	return m
}

func TestCreateIfAbsent(t *testing.T) {
	pool := dbtest.SetupPool(t)
	repo := repository.NewMeetingRepository()
	ctx := context.Background()
	expertID := dbtest.CreateExpert(t, pool, "Dr. Vega", true)

	holder := slot.Holder{ID: uuid.New(), Email: "client@example.com"}
	rival := slot.Holder{ID: uuid.New(), Email: "rival@example.com"}
	startAt := builder.BaseTime.Add(120 * time.Hour)

	t.Run("first settlement creates the meeting", func(t *testing.T) {
		m := mustMeeting(t, expertID, holder, startAt, "sess_1")

		got, created, err := repo.CreateIfAbsent(ctx, pool, m)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, m.ID(), got.ID())
	})

	t.Run("same session settles exactly once", func(t *testing.T) {
		redelivered := mustMeeting(t, expertID, holder, startAt, "sess_1")

		got, created, err := repo.CreateIfAbsent(ctx, pool, redelivered)
		require.NoError(t, err)
		assert.False(t, created)
		assert.NotEqual(t, redelivered.ID(), got.ID(), "existing meeting returned, no second row")
	})

	t.Run("different session on the same slot trips the backstop", func(t *testing.T) {
		loser := mustMeeting(t, expertID, rival, startAt, "sess_2")

		_, _, err := repo.CreateIfAbsent(ctx, pool, loser)
		assert.True(t, infra.IsKind(err, infra.KindDuplicateKey))
	})
}

func TestMarkRefundedBySession(t *testing.T) {
	pool := dbtest.SetupPool(t)
	repo := repository.NewMeetingRepository()
	ctx := context.Background()
	expertID := dbtest.CreateExpert(t, pool, "Dr. Vega", true)

	holder := slot.Holder{ID: uuid.New(), Email: "client@example.com"}
	m := mustMeeting(t, expertID, holder, builder.BaseTime.Add(120*time.Hour), "sess_1")
	_, _, err := repo.CreateIfAbsent(ctx, pool, m)
	require.NoError(t, err)

	require.NoError(t, repo.MarkRefundedBySession(ctx, pool, "sess_1"))

	got, err := repo.FindBySession(ctx, pool, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, meeting.PaymentStatusRefunded, got.PaymentStatus(), "row kept as the historical record")

	err = repo.MarkRefundedBySession(ctx, pool, "sess_1")
	assert.True(t, infra.IsKind(err, infra.KindNotFound), "no paid row left to flip")

	err = repo.MarkRefundedBySession(ctx, pool, "sess_never_booked")
	assert.True(t, infra.IsKind(err, infra.KindNotFound))
}
