package dto

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
)

type IngestEventRequest struct {
	TransactionID  string           `json:"transaction_id" validate:"required" binding:"required"`
	SubscriptionID string           `json:"subscription_id" validate:"required" binding:"required"`
	MetricCode     string           `json:"metric_code" validate:"required" binding:"required"`
	Timestamp      time.Time        `json:"timestamp"`
	Properties     types.Properties `json:"properties"`
}

func (r *IngestEventRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToUsageEvent builds the event; a missing timestamp defaults to now
func (r *IngestEventRequest) ToUsageEvent(ctx context.Context) *events.UsageEvent {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	props := r.Properties
	if props == nil {
		props = types.Properties{}
	}
	return &events.UsageEvent{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		TenantID:       types.GetTenantID(ctx),
		TransactionID:  r.TransactionID,
		SubscriptionID: r.SubscriptionID,
		MetricCode:     r.MetricCode,
		Timestamp:      ts.UTC(),
		Properties:     props,
		CreatedAt:      time.Now().UTC(),
	}
}

type IngestEventResponse struct {
	Event   *events.UsageEvent `json:"event"`
	Created bool               `json:"created"`
}
