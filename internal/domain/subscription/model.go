package subscription

import (
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// Subscription binds a customer to a plan in a fixed currency
type Subscription struct {
	ID                 string                   `db:"id" json:"id"`
	CustomerID         string                   `db:"customer_id" json:"customer_id"`
	PlanID             string                   `db:"plan_id" json:"plan_id"`
	PreviousPlanID     *string                  `db:"previous_plan_id" json:"previous_plan_id,omitempty"`
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	Currency           string                   `db:"currency" json:"currency"`
	BillingTiming      types.BillingTiming      `db:"billing_timing" json:"billing_timing"`
	BillingPeriod      types.BillingPeriod      `db:"billing_period" json:"billing_period"`
	BillingPeriodCount int                      `db:"billing_period_count" json:"billing_period_count"`
	BillingAnchor      time.Time                `db:"billing_anchor" json:"billing_anchor"`
	CurrentPeriodStart time.Time                `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `db:"current_period_end" json:"current_period_end"`
	TrialStart         *time.Time               `db:"trial_start" json:"trial_start,omitempty"`
	TrialEnd           *time.Time               `db:"trial_end" json:"trial_end,omitempty"`
	CancelAt           *time.Time               `db:"cancel_at" json:"cancel_at,omitempty"`
	CanceledAt         *time.Time               `db:"canceled_at" json:"canceled_at,omitempty"`
	// PaymentMethodID is the provider's saved payment method reference
	PaymentMethodID          string     `db:"payment_method_id" json:"payment_method_id,omitempty"`
	LastProgressiveBillingAt *time.Time `db:"last_progressive_billing_at" json:"last_progressive_billing_at,omitempty"`
	// Version guards optimistic updates
	Version int `db:"version" json:"version"`
	types.BaseModel
}

func (s *Subscription) Validate() error {
	if !s.CurrentPeriodStart.Before(s.CurrentPeriodEnd) {
		return ierr.NewError("current period start must be before its end").
			WithHint("Subscription period is invalid").
			WithReportableDetails(map[string]any{
				"current_period_start": s.CurrentPeriodStart,
				"current_period_end":   s.CurrentPeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateCurrencyCode(s.Currency); err != nil {
		return err
	}
	if err := s.BillingTiming.Validate(); err != nil {
		return ierr.WithError(err).WithHint("Unsupported billing timing").Mark(ierr.ErrValidation)
	}
	if err := s.BillingPeriod.Validate(); err != nil {
		return ierr.WithError(err).WithHint("Unsupported billing period").Mark(ierr.ErrValidation)
	}
	return nil
}

// NextPeriodEnd returns from advanced by one billing interval
func (s *Subscription) NextPeriodEnd(from time.Time) (time.Time, error) {
	count := s.BillingPeriodCount
	if count <= 0 {
		count = 1
	}
	return types.NextBillingDate(from, s.BillingAnchor, count, s.BillingPeriod)
}

// ScheduledChange is a deferred mutation applied at the subscription's next period boundary
type ScheduledChange struct {
	ID             string                      `db:"id" json:"id"`
	SubscriptionID string                      `db:"subscription_id" json:"subscription_id"`
	ChangeType     types.ScheduledChangeType   `db:"change_type" json:"change_type"`
	TargetPlanID   string                      `db:"target_plan_id" json:"target_plan_id"`
	DueAt          time.Time                   `db:"due_at" json:"due_at"`
	ChangeStatus   types.ScheduledChangeStatus `db:"change_status" json:"change_status"`
	AppliedAt      *time.Time                  `db:"applied_at" json:"applied_at,omitempty"`
	types.BaseModel
}

// IsDue reports whether the change should be applied at boundary
func (c *ScheduledChange) IsDue(boundary time.Time) bool {
	return c.ChangeStatus == types.ScheduledChangeStatusPending && !c.DueAt.After(boundary)
}
