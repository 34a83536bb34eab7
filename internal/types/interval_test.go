package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBillingDate(t *testing.T) {
	base := time.Date(2024, 1, 31, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		start  time.Time
		anchor time.Time
		unit   int
		period BillingPeriod
		want   time.Time
	}{
		{"hourly", base, time.Time{}, 1, BILLING_PERIOD_HOURLY, base.Add(time.Hour)},
		{"daily", base, time.Time{}, 2, BILLING_PERIOD_DAILY, time.Date(2024, 2, 2, 10, 30, 0, 0, time.UTC)},
		{"weekly", base, time.Time{}, 1, BILLING_PERIOD_WEEKLY, time.Date(2024, 2, 7, 10, 30, 0, 0, time.UTC)},
		{"monthly clamps to leap february", base, time.Time{}, 1, BILLING_PERIOD_MONTHLY, time.Date(2024, 2, 29, 10, 30, 0, 0, time.UTC)},
		{
			"monthly keeps anchor day after short month",
			time.Date(2024, 2, 29, 10, 30, 0, 0, time.UTC), base, 1, BILLING_PERIOD_MONTHLY,
			time.Date(2024, 3, 31, 10, 30, 0, 0, time.UTC),
		},
		{"quarterly", base, time.Time{}, 1, BILLING_PERIOD_QUARTERLY, time.Date(2024, 4, 30, 10, 30, 0, 0, time.UTC)},
		{"annual from leap day", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), time.Time{}, 1, BILLING_PERIOD_ANNUAL, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"december rolls the year", time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), time.Time{}, 1, BILLING_PERIOD_MONTHLY, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBillingDate(tt.start, tt.anchor, tt.unit, tt.period)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestNextBillingDateRejectsBadInput(t *testing.T) {
	_, err := NextBillingDate(time.Now(), time.Time{}, 0, BILLING_PERIOD_MONTHLY)
	assert.Error(t, err)

	_, err = NextBillingDate(time.Now(), time.Time{}, 1, BillingPeriod("FORTNIGHTLY"))
	assert.Error(t, err)
}
