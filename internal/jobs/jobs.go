// Package jobs defines the units of work exchanged over durable queues and the
// queue used to enqueue them. One job enqueues the next; no job runs two phases.
package jobs

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
)

// Job types, carried in the job_type metadata of every message
const (
	TypeRateSubscription = "rate_subscription"
	TypeFinalizeInvoice  = "finalize_invoice"
	TypeChargeInvoice    = "charge_invoice"
	TypePaymentRetry     = "payment_retry"
	TypeProgressiveCheck = "progressive_check"
	TypeUsageEvent       = "usage_event"
	TypeNotification     = "notification"
)

// Job is implemented by every message payload
type Job interface {
	JobType() string
}

// RateSubscription rates one subscription for the given fee period. Usage is
// always read over the subscription's usage window at the time of rating.
// PlanID pins the plan whose fees apply and UsagePlanID the plan whose charges
// price the usage window, so a plan change applied at the boundary does not
// reprice the period that just closed.
type RateSubscription struct {
	SubscriptionID string            `json:"subscription_id"`
	PlanID         string            `json:"plan_id"`
	UsagePlanID    string            `json:"usage_plan_id,omitempty"`
	Kind           types.InvoiceKind `json:"kind"`
	PeriodStart    time.Time         `json:"period_start"`
	PeriodEnd      time.Time         `json:"period_end"`
	UsageStart     time.Time         `json:"usage_start"`
	UsageEnd       time.Time         `json:"usage_end"`
}

func (RateSubscription) JobType() string { return TypeRateSubscription }

type FinalizeInvoice struct {
	InvoiceID string `json:"invoice_id"`
}

func (FinalizeInvoice) JobType() string { return TypeFinalizeInvoice }

// ChargeInvoice attempts an auto-charge of a finalized invoice
type ChargeInvoice struct {
	InvoiceID string `json:"invoice_id"`
}

func (ChargeInvoice) JobType() string { return TypeChargeInvoice }

type PaymentRetry struct {
	RetryID string `json:"retry_id"`
}

func (PaymentRetry) JobType() string { return TypePaymentRetry }

type ProgressiveCheck struct {
	SubscriptionID string `json:"subscription_id"`
}

func (ProgressiveCheck) JobType() string { return TypeProgressiveCheck }

// UsageEvent is a usage event submitted through the queue instead of the API
type UsageEvent struct {
	TransactionID  string           `json:"transaction_id"`
	SubscriptionID string           `json:"subscription_id"`
	MetricCode     string           `json:"metric_code"`
	Timestamp      time.Time        `json:"timestamp"`
	Properties     types.Properties `json:"properties"`
}

func (UsageEvent) JobType() string { return TypeUsageEvent }
