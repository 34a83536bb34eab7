package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/domain/settings"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// publishWebhook queues an outbound webhook. Failures are logged, never returned:
// a lost webhook must not roll back billing state that already committed.
func (p ServiceParams) publishWebhook(ctx context.Context, eventName string, payload interface{}) {
	if p.WebhookPublisher == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.Logger.Errorw("failed to marshal webhook payload", "event_name", eventName, "error", err)
		return
	}

	event := &types.WebhookEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventName: eventName,
		TenantID:  types.GetTenantID(ctx),
		Timestamp: time.Now().UTC(),
		Payload:   json.RawMessage(body),
	}
	if err := p.WebhookPublisher.PublishWebhook(ctx, event); err != nil {
		p.Logger.Errorf("failed to publish %s event: %v", event.EventName, err)
	}
}

// billingSettings returns the tenant settings merged over the platform defaults
func (p ServiceParams) billingSettings(ctx context.Context) (*settings.BillingSettings, error) {
	return cache.Fetch(ctx, p.Cache, cache.TenantKey(ctx, cache.PrefixSettings), p.loadBillingSettings)
}

func (p ServiceParams) loadBillingSettings(ctx context.Context) (*settings.BillingSettings, error) {
	resolved := &settings.BillingSettings{
		GracePeriodDays:    p.Config.Billing.DefaultGracePeriodDays,
		NetTermDays:        p.Config.Billing.DefaultNetTermDays,
		DunningMaxAttempts: p.Config.Billing.DunningMaxAttempts,
	}

	stored, err := p.SettingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		if stored.GracePeriodDays >= 0 {
			resolved.GracePeriodDays = stored.GracePeriodDays
		}
		if stored.NetTermDays >= 0 {
			resolved.NetTermDays = stored.NetTermDays
		}
		if stored.DunningMaxAttempts > 0 {
			resolved.DunningMaxAttempts = stored.DunningMaxAttempts
		}
		resolved.BillingEmail = stored.BillingEmail
	}
	return resolved, nil
}

// gracePeriodDays resolves the grace period: plan, then tenant settings, then platform default
func (p ServiceParams) gracePeriodDays(ctx context.Context, pl *plan.Plan) (int, error) {
	if pl != nil && pl.GracePeriodDays != nil {
		return *pl.GracePeriodDays, nil
	}
	s, err := p.billingSettings(ctx)
	if err != nil {
		return 0, err
	}
	return s.GracePeriodDays, nil
}

// getPlan reads a plan through the cache; plans are immutable once subscribed to
func (p ServiceParams) getPlan(ctx context.Context, id string) (*plan.Plan, error) {
	return cache.Fetch(ctx, p.Cache, cache.TenantKey(ctx, cache.PrefixPlan, id),
		func(ctx context.Context) (*plan.Plan, error) {
			return p.PlanRepo.GetPlan(ctx, id)
		})
}

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// newLineItem builds a line whose stored quantity is one, so that
// UnitAmount x Quantity equals Amount exactly. Units keeps the priced quantity.
func newLineItem(
	ctx context.Context,
	lineType types.LineItemType,
	referenceID, displayName string,
	units, amount decimal.Decimal,
	currency string,
	periodStart, periodEnd *time.Time,
) *invoice.LineItem {
	return &invoice.LineItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		LineType:    lineType,
		ReferenceID: referenceID,
		DisplayName: displayName,
		Units:       units,
		Quantity:    decimal.NewFromInt(1),
		UnitAmount:  amount,
		Amount:      amount,
		Currency:    currency,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
}

// notifyCustomer queues a message to the customer's email. Failures are logged.
func (p ServiceParams) notifyCustomer(ctx context.Context, customerID string, template types.NotificationTemplate, data map[string]interface{}) {
	if p.Notifier == nil {
		return
	}
	cust, err := p.CustomerRepo.Get(ctx, customerID)
	if err != nil {
		p.Logger.Errorw("failed to load customer for notification",
			"customer_id", customerID,
			"template", template,
			"error", err)
		return
	}
	err = p.Notifier.Send(ctx, &interfaces.Notification{
		TenantID:  types.GetTenantID(ctx),
		Recipient: cust.Email,
		Template:  template,
		Context:   data,
	})
	if err != nil {
		p.Logger.Errorw("failed to queue notification",
			"customer_id", customerID,
			"template", template,
			"error", err)
	}
}

// errorReason prefers the user facing hint of err
func errorReason(err error) string {
	if hint := ierr.Hint(err); hint != "" {
		return hint
	}
	return err.Error()
}
