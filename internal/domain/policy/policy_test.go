//go:build unit

package policy_test

import (
	"testing"
	"time"

	"expertbooking/internal/domain/policy"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = policy.Config{
	InstantThreshold:     72 * time.Hour,
	InstantPaymentWindow: 30 * time.Minute,
	ReservationWindow:    24 * time.Hour,
	ProviderMinWindow:    24 * time.Hour,
	ProviderMaxWindow:    168 * time.Hour,
}

func TestSelect(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	selector := policy.NewSelector(testConfig)

	t.Run("near-term appointment gets card only without reservation", func(t *testing.T) {
		pol, err := selector.Select(now, now.Add(48*time.Hour))
		require.NoError(t, err)

		want := policy.Policy{
			Methods:          []policy.Method{policy.MethodCard},
			PaymentWindow:    30 * time.Minute,
			NeedsReservation: false,
		}
		assert.Empty(t, cmp.Diff(want, pol))
	})

	t.Run("far appointment gets delayed methods with reservation", func(t *testing.T) {
		pol, err := selector.Select(now, now.Add(96*time.Hour))
		require.NoError(t, err)

		assert.True(t, pol.NeedsReservation)
		assert.True(t, pol.AllowsDelayed())
		assert.Equal(t, 24*time.Hour, pol.ReservationWindow)
		assert.Equal(t, 96*time.Hour, pol.PaymentWindow)
	})

	t.Run("threshold boundary", func(t *testing.T) {
		tests := []struct {
			name         string
			until        time.Duration
			wantDelayed  bool
			wantReserved bool
		}{
			{"one second inside the threshold", 72*time.Hour - time.Second, false, false},
			{"exactly at the threshold", 72 * time.Hour, false, false},
			{"one second past the threshold", 72*time.Hour + time.Second, true, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				pol, err := selector.Select(now, now.Add(tt.until))
				require.NoError(t, err)
				assert.Equal(t, tt.wantDelayed, pol.AllowsDelayed())
				assert.Equal(t, tt.wantReserved, pol.NeedsReservation)
			})
		}
	})

	t.Run("payment window clamps to provider limits", func(t *testing.T) {
		// Just past the threshold: raw window below the provider minimum.
		pol, err := selector.Select(now, now.Add(73*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, pol.PaymentWindow, "clamped up to provider minimum")

		// A month out: raw window above the provider maximum.
		pol, err = selector.Select(now, now.Add(30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 168*time.Hour, pol.PaymentWindow, "clamped down to provider maximum")
	})

	t.Run("rejects past and present start times", func(t *testing.T) {
		_, err := selector.Select(now, now)
		assert.ErrorIs(t, err, policy.ErrInvalidSchedule)

		_, err = selector.Select(now, now.Add(-time.Hour))
		assert.ErrorIs(t, err, policy.ErrInvalidSchedule)
	})
}

func TestMethodStrings(t *testing.T) {
	got := policy.MethodStrings([]policy.Method{policy.MethodCard, policy.MethodBankVoucher})
	assert.Equal(t, []string{"card", "bank_voucher"}, got)
}
