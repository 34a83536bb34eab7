package types

import "fmt"

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "TRIALING"
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusPaused   SubscriptionStatus = "PAUSED"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

// IsBillable reports whether usage can be recorded and rated against the subscription
func (s SubscriptionStatus) IsBillable() bool {
	switch s {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue:
		return true
	}
	return false
}

type BillingTiming string

const (
	BillingTimingInAdvance BillingTiming = "IN_ADVANCE"
	BillingTimingInArrears BillingTiming = "IN_ARREARS"
)

func (t BillingTiming) Validate() error {
	switch t {
	case BillingTimingInAdvance, BillingTimingInArrears:
		return nil
	}
	return fmt.Errorf("invalid billing timing: %s", t)
}

type ScheduledChangeType string

const (
	ScheduledChangeTypePlanChange ScheduledChangeType = "PLAN_CHANGE"
)

type ScheduledChangeStatus string

const (
	ScheduledChangeStatusPending  ScheduledChangeStatus = "PENDING"
	ScheduledChangeStatusApplied  ScheduledChangeStatus = "APPLIED"
	ScheduledChangeStatusCanceled ScheduledChangeStatus = "CANCELED"
)
