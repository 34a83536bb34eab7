package types

import (
	"fmt"
	"time"
)

// BillingPeriod is the interval unit a subscription renews on
type BillingPeriod string

const (
	BILLING_PERIOD_HOURLY    BillingPeriod = "HOURLY"
	BILLING_PERIOD_DAILY     BillingPeriod = "DAILY"
	BILLING_PERIOD_WEEKLY    BillingPeriod = "WEEKLY"
	BILLING_PERIOD_MONTHLY   BillingPeriod = "MONTHLY"
	BILLING_PERIOD_QUARTERLY BillingPeriod = "QUARTERLY"
	BILLING_PERIOD_ANNUAL    BillingPeriod = "ANNUAL"
)

func (p BillingPeriod) Validate() error {
	switch p {
	case BILLING_PERIOD_HOURLY, BILLING_PERIOD_DAILY, BILLING_PERIOD_WEEKLY,
		BILLING_PERIOD_MONTHLY, BILLING_PERIOD_QUARTERLY, BILLING_PERIOD_ANNUAL:
		return nil
	}
	return fmt.Errorf("invalid billing period: %s", p)
}

// NextBillingDate returns start advanced by unit billing periods.
// Month based periods keep the day of month of anchor, clamped to the last day
// of the target month, so Jan 31 -> Feb 28 -> Mar 31 does not drift.
// A zero anchor uses start itself.
func NextBillingDate(start, anchor time.Time, unit int, period BillingPeriod) (time.Time, error) {
	if unit <= 0 {
		return start, fmt.Errorf("billing period unit must be a positive integer, got %d", unit)
	}
	if anchor.IsZero() {
		anchor = start
	}

	switch period {
	case BILLING_PERIOD_HOURLY:
		return start.Add(time.Duration(unit) * time.Hour), nil
	case BILLING_PERIOD_DAILY:
		return start.AddDate(0, 0, unit), nil
	case BILLING_PERIOD_WEEKLY:
		return start.AddDate(0, 0, 7*unit), nil
	case BILLING_PERIOD_MONTHLY:
		return addMonthsClamped(start, anchor.Day(), unit), nil
	case BILLING_PERIOD_QUARTERLY:
		return addMonthsClamped(start, anchor.Day(), 3*unit), nil
	case BILLING_PERIOD_ANNUAL:
		return addMonthsClamped(start, anchor.Day(), 12*unit), nil
	default:
		return start, fmt.Errorf("invalid billing period type: %s", period)
	}
}

func addMonthsClamped(t time.Time, day int, months int) time.Time {
	y, m, _ := t.Date()
	h, min, sec := t.Clock()

	// normalise through the first of the month so overflow never spills into the next one
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(first.Year(), first.Month(), day, h, min, sec, t.Nanosecond(), t.Location())
}
