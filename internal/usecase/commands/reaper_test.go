//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"expertbooking/internal/pkg/clock"
	"expertbooking/internal/usecase/commands"
	"expertbooking/internal/usecase/shared"
	"expertbooking/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseExpired(t *testing.T) {
	uow := &fakeUoW{tx: newFakeTx()}
	notifier := &fakeNotifier{}
	mockClock := clock.NewMockClock(builder.BaseTime)
	usecase := commands.NewReaperUseCase(uow, notifier, mockClock)

	seed := func(t *testing.T, offset time.Duration) {
		t.Helper()
		hold, err := builder.NewHoldBuilder().
			WithStartAt(builder.BaseTime.Add(offset + 120*time.Hour)).
			WithNow(builder.BaseTime.Add(offset)).
			WithWindow(24 * time.Hour).
			Build()
		require.NoError(t, err)
		_, err = uow.tx.reservations.TryReserve(context.Background(), nil, hold, builder.BaseTime.Add(offset))
		require.NoError(t, err)
	}

	// Two holds created two days ago are past their window; one fresh hold
	// is not.
	seed(t, -48*time.Hour)
	seed(t, -48*time.Hour)
	seed(t, -time.Hour)

	released, err := usecase.ReleaseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)
	assert.Len(t, uow.tx.reservations.bySlot, 1)

	require.Len(t, notifier.published, 2)
	for _, n := range notifier.published {
		assert.Equal(t, shared.TopicReservationReleased, n.Topic)
		assert.Equal(t, "reservation_expired", n.Extra["reason"])
	}

	t.Run("empty sweep", func(t *testing.T) {
		released, err := usecase.ReleaseExpired(context.Background())
		require.NoError(t, err)
		assert.Zero(t, released)
	})
}
