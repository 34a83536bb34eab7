package types

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type PaymentRetryStatus string

const (
	PaymentRetryStatusPending   PaymentRetryStatus = "PENDING"
	PaymentRetryStatusSuccess   PaymentRetryStatus = "SUCCESS"
	PaymentRetryStatusExhausted PaymentRetryStatus = "EXHAUSTED"
)

// ProviderType identifies a payment provider adapter
type ProviderType string

const (
	ProviderStripe ProviderType = "stripe"
)

// ProviderEventStatus is the normalised outcome carried by a verified provider webhook
type ProviderEventStatus string

const (
	ProviderEventSucceeded ProviderEventStatus = "succeeded"
	ProviderEventFailed    ProviderEventStatus = "failed"
	ProviderEventIgnored   ProviderEventStatus = "ignored"
)
