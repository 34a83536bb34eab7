package dto

import "github.com/flexprice/billingcore/internal/validator"

// ScheduleChangeRequest defers a plan change to the end of the current period
type ScheduleChangeRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	TargetPlanID   string `json:"target_plan_id" validate:"required"`
}

func (r *ScheduleChangeRequest) Validate() error {
	return validator.ValidateRequest(r)
}
