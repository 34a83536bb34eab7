package settings

import "github.com/flexprice/billingcore/internal/types"

// BillingSettings are the tenant's organisation-wide billing defaults
type BillingSettings struct {
	GracePeriodDays    int    `db:"grace_period_days" json:"grace_period_days"`
	NetTermDays        int    `db:"net_term_days" json:"net_term_days"`
	DunningMaxAttempts int    `db:"dunning_max_attempts" json:"dunning_max_attempts"`
	BillingEmail       string `db:"billing_email" json:"billing_email"`
	types.BaseModel
}
