package types

// NotificationTemplate names the customer-facing message the notification dispatcher renders
type NotificationTemplate string

const (
	NotificationInvoiceIssued        NotificationTemplate = "invoice_issued"
	NotificationPaymentSucceeded     NotificationTemplate = "payment_succeeded"
	NotificationPaymentFailed        NotificationTemplate = "payment_failed"
	NotificationPaymentRetry         NotificationTemplate = "payment_retry_scheduled"
	NotificationSubscriptionCanceled NotificationTemplate = "subscription_canceled"
)
