//go:build unit

package reservation_test

import (
	"testing"
	"time"

	"expertbooking/internal/domain/reservation"
	"expertbooking/internal/domain/slot"
	"expertbooking/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHold(t *testing.T) {
	t.Run("basic success case", func(t *testing.T) {
		res, err := builder.NewHoldBuilder().Build()
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.NotEqual(t, uuid.Nil, res.ID())
		assert.Equal(t, reservation.StatusHeld, res.Status())
		assert.Nil(t, res.PaymentSessionID())
		assert.Equal(t, builder.BaseTime.Add(24*time.Hour), res.ExpiresAt())
	})

	t.Run("rejects zero holder", func(t *testing.T) {
		_, err := builder.NewHoldBuilder().WithHolder(slot.Holder{}).Build()
		assert.ErrorIs(t, err, reservation.ErrInvalidHolder)
	})

	t.Run("rejects non-positive window", func(t *testing.T) {
		_, err := builder.NewHoldBuilder().WithWindow(0).Build()
		assert.ErrorIs(t, err, reservation.ErrInvalidExpiry)

		_, err = builder.NewHoldBuilder().WithWindow(-time.Hour).Build()
		assert.ErrorIs(t, err, reservation.ErrInvalidExpiry)
	})
}

func TestAttachSession(t *testing.T) {
	res, err := builder.NewHoldBuilder().Build()
	require.NoError(t, err)

	require.NoError(t, res.AttachSession("sess_1"))
	require.NotNil(t, res.PaymentSessionID())
	assert.Equal(t, "sess_1", *res.PaymentSessionID())

	t.Run("same session is idempotent", func(t *testing.T) {
		assert.NoError(t, res.AttachSession("sess_1"))
	})

	t.Run("different session is rejected", func(t *testing.T) {
		assert.ErrorIs(t, res.AttachSession("sess_2"), reservation.ErrSessionAlreadySet)
	})
}

func TestConfirm(t *testing.T) {
	res, err := builder.NewHoldBuilder().Build()
	require.NoError(t, err)

	require.NoError(t, res.Confirm())
	assert.Equal(t, reservation.StatusConfirmed, res.Status())

	assert.ErrorIs(t, res.Confirm(), reservation.ErrAlreadyConfirmed)
}

func TestExpiry(t *testing.T) {
	res, err := builder.NewHoldBuilder().WithWindow(24 * time.Hour).Build()
	require.NoError(t, err)

	t.Run("live before expiry", func(t *testing.T) {
		assert.True(t, res.IsLive(builder.BaseTime.Add(24*time.Hour-time.Second)))
		assert.False(t, res.IsExpired(builder.BaseTime.Add(24*time.Hour-time.Second)))
	})

	t.Run("dead exactly at expiry", func(t *testing.T) {
		assert.True(t, res.IsExpired(builder.BaseTime.Add(24*time.Hour)))
		assert.False(t, res.IsLive(builder.BaseTime.Add(24*time.Hour)))
	})
}

func TestHeldBy(t *testing.T) {
	holder := slot.Holder{ID: uuid.New(), Email: "a@example.com"}
	res, err := builder.NewHoldBuilder().WithHolder(holder).Build()
	require.NoError(t, err)

	// Same id with a different email is still the same holder.
	assert.True(t, res.HeldBy(slot.Holder{ID: holder.ID, Email: "b@example.com"}))
	assert.False(t, res.HeldBy(slot.Holder{ID: uuid.New()}))
}
