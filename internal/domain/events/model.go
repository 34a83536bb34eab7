package events

import (
	"strings"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// UsageEvent is an append-only usage record. TransactionID is the idempotency key.
type UsageEvent struct {
	ID             string           `db:"id" json:"id"`
	TenantID       string           `db:"tenant_id" json:"tenant_id"`
	TransactionID  string           `db:"transaction_id" json:"transaction_id"`
	SubscriptionID string           `db:"subscription_id" json:"subscription_id"`
	MetricCode     string           `db:"metric_code" json:"metric_code"`
	Timestamp      time.Time        `db:"timestamp" json:"timestamp"`
	Properties     types.Properties `db:"properties" json:"properties"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

func (e *UsageEvent) Validate() error {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(e.TransactionID) == "" {
		missing = append(missing, "transaction_id")
	}
	if e.SubscriptionID == "" {
		missing = append(missing, "subscription_id")
	}
	if e.MetricCode == "" {
		missing = append(missing, "metric_code")
	}
	if len(missing) > 0 {
		return ierr.NewError("usage event is missing required fields").
			WithHint("Usage event must carry a transaction id, subscription id and metric code").
			WithReportableDetails(map[string]any{"missing": missing}).
			Mark(ierr.ErrValidation)
	}
	if e.Timestamp.IsZero() {
		return ierr.NewError("usage event timestamp is required").
			WithHint("Usage event timestamp is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// UsageFilter selects the events of one metric for one subscription in [From, To)
type UsageFilter struct {
	SubscriptionID string
	MetricCode     string
	From           time.Time
	To             time.Time
}
