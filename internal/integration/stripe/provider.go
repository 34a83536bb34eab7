package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Metadata keys written on payment intents
const (
	MetadataInvoiceID   = "invoice_id"
	MetadataTenantID    = "tenant_id"
	MetadataCustomerRef = "customer_ref"
)

// Provider adapts the Stripe API to interfaces.PaymentProvider
type Provider struct {
	client        *stripe.Client
	webhookSecret string
	logger        *logger.Logger
}

var _ interfaces.PaymentProvider = (*Provider)(nil)

func NewProvider(client *stripe.Client, webhookSecret string, log *logger.Logger) *Provider {
	return &Provider{client: client, webhookSecret: webhookSecret, logger: log}
}

// Charge creates and confirms an off-session payment for a provider customer
func (p *Provider) Charge(ctx context.Context, amount decimal.Decimal, currency, customerRef string, metadata map[string]string) (*interfaces.ChargeResult, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:     stripe.Int64(toMinorUnits(amount, currency)),
		Currency:   stripe.String(types.NormalizeCurrency(currency)),
		Customer:   stripe.String(customerRef),
		OffSession: stripe.Bool(true),
		Confirm:    stripe.Bool(true),
		Metadata:   metadata,
	}
	return p.createPaymentIntent(ctx, params)
}

// ChargeSavedMethod charges a saved payment method off session
func (p *Provider) ChargeSavedMethod(ctx context.Context, methodRef string, amount decimal.Decimal, currency string, metadata map[string]string) (*interfaces.ChargeResult, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(toMinorUnits(amount, currency)),
		Currency:      stripe.String(types.NormalizeCurrency(currency)),
		PaymentMethod: stripe.String(methodRef),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Metadata:      metadata,
	}
	if ref := metadata[MetadataCustomerRef]; ref != "" {
		params.Customer = stripe.String(ref)
	}
	return p.createPaymentIntent(ctx, params)
}

func (p *Provider) createPaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*interfaces.ChargeResult, error) {
	intent, err := p.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return classifyChargeError(err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		reason := string(intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			reason = intent.LastPaymentError.Msg
		}
		p.logger.Infow("stripe payment intent did not succeed",
			"payment_intent_id", intent.ID,
			"status", intent.Status,
		)
		return &interfaces.ChargeResult{Success: false, TransactionID: intent.ID, Error: reason}, nil
	}

	return &interfaces.ChargeResult{Success: true, TransactionID: intent.ID}, nil
}

// classifyChargeError turns declines into unsuccessful results and keeps real
// failures as errors the caller can retry or abandon
func classifyChargeError(err error) (*interfaces.ChargeResult, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil, ierr.WithError(err).
			WithHint("Payment provider could not be reached").
			Mark(ierr.ErrHTTPClient)
	}

	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		result := &interfaces.ChargeResult{Success: false, Error: stripeErr.Msg}
		if stripeErr.PaymentIntent != nil {
			result.TransactionID = stripeErr.PaymentIntent.ID
		}
		return result, nil
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized || stripeErr.HTTPStatusCode == http.StatusForbidden:
		return nil, ierr.WithError(err).
			WithHint("Payment provider rejected the configured credentials").
			Mark(ierr.ErrConfiguration)
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
		return &interfaces.ChargeResult{Success: false, Error: stripeErr.Msg}, nil
	}

	return nil, ierr.WithError(err).
		WithHint("Payment provider failed to process the charge").
		WithReportableDetails(map[string]any{
			"stripe_error_type": stripeErr.Type,
			"stripe_error_code": stripeErr.Code,
		}).
		Mark(ierr.ErrHTTPClient)
}

// Refund refunds a payment intent, fully when amount is nil
func (p *Provider) Refund(ctx context.Context, transactionRef string, amount *decimal.Decimal, currency string) (*interfaces.RefundResult, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(transactionRef),
	}
	if amount != nil {
		params.Amount = stripe.Int64(toMinorUnits(*amount, currency))
	}

	refund, err := p.client.V1Refunds.Create(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return &interfaces.RefundResult{Success: false, Error: stripeErr.Msg}, nil
		}
		return nil, ierr.WithError(err).
			WithHint("Payment provider failed to process the refund").
			Mark(ierr.ErrHTTPClient)
	}

	if refund.Status == stripe.RefundStatusFailed || refund.Status == stripe.RefundStatusCanceled {
		return &interfaces.RefundResult{Success: false, Error: string(refund.Status)}, nil
	}
	return &interfaces.RefundResult{Success: true}, nil
}

// VerifyWebhook checks the Stripe-Signature header and normalises payment intent events
func (p *Provider) VerifyWebhook(_ context.Context, payload []byte, signature string) (*interfaces.ProviderWebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}

	var status types.ProviderEventStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = types.ProviderEventSucceeded
	case "payment_intent.payment_failed":
		status = types.ProviderEventFailed
	default:
		return &interfaces.ProviderWebhookEvent{Status: types.ProviderEventIgnored}, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Webhook payload is not a payment intent").
			Mark(ierr.ErrValidation)
	}

	out := &interfaces.ProviderWebhookEvent{
		TransactionID: intent.ID,
		Status:        status,
		InvoiceRef:    intent.Metadata[MetadataInvoiceID],
	}
	if intent.PaymentMethod != nil {
		out.SavedMethodToken = intent.PaymentMethod.ID
	}
	if intent.LastPaymentError != nil {
		out.FailureReason = intent.LastPaymentError.Msg
	}
	return out, nil
}

func toMinorUnits(amount decimal.Decimal, currency string) int64 {
	precision := types.GetCurrencyPrecision(currency)
	return amount.Shift(precision).Round(0).IntPart()
}
