package service

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/aggregation"
	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/override"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/domain/wallet"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/idempotency"
	"github.com/flexprice/billingcore/internal/pricing"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const progressiveNettingName = "Progressive billing already invoiced"

// RateRequest identifies one invoicing trigger. The fee period bounds the plan
// line; usage is read over [UsageStart, UsageEnd).
type RateRequest struct {
	SubscriptionID string
	// PlanID defaults to the subscription's current plan
	PlanID string
	// UsagePlanID prices the usage window and defaults to PlanID
	UsagePlanID string
	Kind        types.InvoiceKind
	PeriodStart time.Time
	PeriodEnd   time.Time
	UsageStart  time.Time
	UsageEnd    time.Time
	// Now defaults to the wall clock
	Now time.Time
}

func (r *RateRequest) Validate() error {
	if r.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}
	if r.Kind != types.InvoiceKindSubscription && r.Kind != types.InvoiceKindProgressive {
		return ierr.NewError("invalid invoice kind").
			WithHintf("Unsupported invoice kind %s", r.Kind).
			Mark(ierr.ErrValidation)
	}
	if r.PeriodEnd.Before(r.PeriodStart) || r.UsageEnd.Before(r.UsageStart) {
		return ierr.NewError("period end before period start").
			WithHint("Rating period is invalid").
			WithReportableDetails(map[string]any{
				"period_start": r.PeriodStart,
				"period_end":   r.PeriodEnd,
				"usage_start":  r.UsageStart,
				"usage_end":    r.UsageEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// UsageResult is the priced usage of one subscription over a window
type UsageResult struct {
	Lines []*invoice.LineItem
	Total decimal.Decimal
	// ChargeIDs are the charges that produced a line
	ChargeIDs []string
}

// BillingService rates subscriptions into invoices
type BillingService interface {
	// RateSubscription builds and persists the invoice for one trigger. A repeated
	// trigger returns the invoice of the first one with created false. A progressive
	// trigger with nothing new to bill returns nil.
	RateSubscription(ctx context.Context, req RateRequest) (*invoice.Invoice, bool, error)

	// CalculateUsage prices every charge of the plan over [from, to). Charges that
	// fail to price are logged and count as zero.
	CalculateUsage(ctx context.Context, sub *subscription.Subscription, planID string, ov *override.PlanOverride, from, to time.Time) (*UsageResult, error)
}

type billingService struct {
	ServiceParams
	idempotencyGenerator *idempotency.Generator
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams:        params,
		idempotencyGenerator: idempotency.NewGenerator(),
	}
}

// errNothingToBill aborts the rating transaction without persisting anything
var errNothingToBill = ierr.NewError("nothing to bill").Mark(ierr.ErrInvalidOperation)

func (s *billingService) RateSubscription(ctx context.Context, req RateRequest) (*invoice.Invoice, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	scope := idempotency.ScopeSubscriptionInvoice
	if req.Kind == types.InvoiceKindProgressive {
		scope = idempotency.ScopeProgressiveInvoice
	}
	key := s.idempotencyGenerator.GenerateKey(scope, map[string]interface{}{
		"subscription_id": req.SubscriptionID,
		"period_start":    req.PeriodStart,
		"period_end":      req.PeriodEnd,
		"usage_start":     req.UsageStart,
		"usage_end":       req.UsageEnd,
	})

	existing, err := s.InvoiceRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.Logger.Debugw("invoice already rated for trigger",
			"subscription_id", req.SubscriptionID,
			"invoice_id", existing.ID)
		return existing, false, nil
	}

	var inv *invoice.Invoice
	var duplicate bool

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// the subscription lock serialises rating passes of one subscription
		sub, err := s.SubRepo.GetForUpdate(ctx, req.SubscriptionID)
		if err != nil {
			return err
		}

		if existing, err := s.InvoiceRepo.GetByIdempotencyKey(ctx, key); err != nil {
			return err
		} else if existing != nil {
			inv, duplicate = existing, true
			return nil
		}

		built, err := s.buildInvoice(ctx, sub, req, key, now)
		if err != nil {
			return err
		}

		if err := s.InvoiceRepo.Create(ctx, built); err != nil {
			return err
		}

		addOnIDs := lo.FilterMap(built.LineItems, func(li *invoice.LineItem, _ int) (string, bool) {
			return li.ReferenceID, li.LineType == types.LineItemTypeAddOn
		})
		if len(addOnIDs) > 0 {
			if err := s.AddonRepo.MarkInvoiced(ctx, addOnIDs, built.ID); err != nil {
				return err
			}
		}

		inv = built
		return nil
	})

	switch {
	case err == nil:
	case ierr.Is(err, errNothingToBill):
		s.Logger.Debugw("nothing to bill for trigger",
			"subscription_id", req.SubscriptionID,
			"kind", req.Kind)
		return nil, false, nil
	case ierr.IsAlreadyExists(err):
		// a concurrent pass won the idempotency key
		existing, lookupErr := s.InvoiceRepo.GetByIdempotencyKey(ctx, key)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing == nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, err
	}
	if duplicate {
		return inv, false, nil
	}

	amount, _ := inv.Amount.Float64()
	s.Metrics.InvoiceRated(string(inv.InvoiceKind), string(inv.InvoiceStatus), inv.Currency, amount)

	s.Logger.Infow("rated subscription",
		"subscription_id", inv.SubscriptionID,
		"invoice_id", inv.ID,
		"kind", inv.InvoiceKind,
		"status", inv.InvoiceStatus,
		"amount", inv.Amount,
		"line_items", len(inv.LineItems))

	if inv.IsDraft() {
		s.publishWebhook(ctx, types.WebhookEventInvoiceDrafted, inv)
		return inv, true, nil
	}

	s.publishWebhook(ctx, types.WebhookEventInvoiceCreated, inv)
	NewInvoiceService(s.ServiceParams).DispatchFinalized(ctx, inv)
	return inv, true, nil
}

// buildInvoice runs the rating steps strictly in order; each step reads the running
// total left by the previous one
func (s *billingService) buildInvoice(
	ctx context.Context,
	sub *subscription.Subscription,
	req RateRequest,
	key string,
	now time.Time,
) (*invoice.Invoice, error) {
	if req.Kind == types.InvoiceKindProgressive && !sub.SubscriptionStatus.IsBillable() {
		return nil, errNothingToBill
	}

	planID := lo.Ternary(req.PlanID != "", req.PlanID, sub.PlanID)
	pl, err := s.getPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	ov, err := s.OverrideRepo.GetByCustomerAndPlan(ctx, sub.CustomerID, planID)
	if err != nil {
		return nil, err
	}

	overrideSvc := NewOverrideService(s.ServiceParams)
	currency := types.NormalizeCurrency(sub.Currency)
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE_NUMBER),
		InvoiceKind:    req.Kind,
		Currency:       currency,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		IdempotencyKey: key,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	running := decimal.Zero
	addLines := func(lines ...*invoice.LineItem) {
		for _, li := range lines {
			li.InvoiceID = inv.ID
			running = running.Add(li.Amount)
		}
		inv.LineItems = append(inv.LineItems, lines...)
	}

	// 1. plan fee
	if req.Kind == types.InvoiceKindSubscription {
		price, ok, err := overrideSvc.ResolvePlanPrice(ctx, ov, planID, currency)
		if err != nil {
			return nil, err
		}
		if ok && price.IsPositive() {
			amount := types.RoundToCurrencyPrecision(price, currency)
			addLines(newLineItem(ctx, types.LineItemTypePlan, pl.ID, pl.Name,
				decimal.NewFromInt(1), amount, currency, lo.ToPtr(req.PeriodStart), lo.ToPtr(req.PeriodEnd)))
		}
	}

	// 2. usage, net of what progressive invoices already drew in this window
	usagePlanID, usageOverride := planID, ov
	if req.UsagePlanID != "" && req.UsagePlanID != planID {
		usagePlanID = req.UsagePlanID
		if usageOverride, err = s.OverrideRepo.GetByCustomerAndPlan(ctx, sub.CustomerID, usagePlanID); err != nil {
			return nil, err
		}
	}
	usage, err := s.CalculateUsage(ctx, sub, usagePlanID, usageOverride, req.UsageStart, req.UsageEnd)
	if err != nil {
		return nil, err
	}
	addLines(usage.Lines...)

	if req.UsageStart.Before(req.UsageEnd) {
		prior, err := s.InvoiceRepo.SumProgressiveUsage(ctx, sub.ID, req.UsageStart, req.UsageEnd)
		if err != nil {
			return nil, err
		}
		if netted := decimal.Min(prior, usage.Total); netted.IsPositive() {
			addLines(newLineItem(ctx, types.LineItemTypeUsage, "", progressiveNettingName,
				decimal.NewFromInt(1), netted.Neg(), currency, lo.ToPtr(req.UsageStart), lo.ToPtr(req.UsageEnd)))
		}
	}

	if req.Kind == types.InvoiceKindProgressive {
		// an earlier draw may already have taken this usage
		threshold := lo.FromPtr(pl.ProgressiveBillingThreshold)
		if !running.IsPositive() || running.LessThan(threshold) {
			return nil, errNothingToBill
		}
	}

	if req.Kind == types.InvoiceKindSubscription {
		// 3. minimum commitment true-up
		if commitment := overrideSvc.ResolveMinimumCommitment(ov, pl); commitment != nil && commitment.GreaterThan(running) {
			shortfall := types.RoundToCurrencyPrecision(commitment.Sub(running), currency)
			if shortfall.IsPositive() {
				addLines(newLineItem(ctx, types.LineItemTypeMinimumCommitment, pl.ID, "Minimum commitment true-up",
					decimal.NewFromInt(1), shortfall, currency, lo.ToPtr(req.PeriodStart), lo.ToPtr(req.PeriodEnd)))
			}
		}

		// 4. coupons
		couponLines, err := NewCouponService(s.ServiceParams).ApplyToInvoice(ctx, sub.CustomerID, sub.ID, running, currency, now)
		if err != nil {
			return nil, err
		}
		addLines(couponLines...)

		// 5. add-ons not billed yet
		addOns, err := s.AddonRepo.ListUnbilledForUpdate(ctx, sub.ID, currency)
		if err != nil {
			return nil, err
		}
		for _, a := range addOns {
			addLines(newLineItem(ctx, types.LineItemTypeAddOn, a.ID, a.Name,
				decimal.NewFromInt(1), types.RoundToCurrencyPrecision(a.Amount, currency), currency, nil, nil))
		}
	}

	// 6. taxes on the pre-tax total
	taxSvc := NewTaxService(s.ServiceParams)
	taxes, err := taxSvc.ResolveTaxes(ctx, sub.CustomerID, planID, usage.ChargeIDs)
	if err != nil {
		return nil, err
	}
	addLines(taxSvc.TaxLines(ctx, taxes, running, currency)...)

	// 7. clamp
	total := types.RoundToCurrencyPrecision(decimal.Max(running, decimal.Zero), currency)

	// 8. draft or pending
	grace, err := s.gracePeriodDays(ctx, pl)
	if err != nil {
		return nil, err
	}
	if grace > 0 {
		inv.InvoiceStatus = types.InvoiceStatusDraft
		inv.GracePeriodEndsAt = lo.ToPtr(addDays(now, grace))
	} else {
		settings, err := s.billingSettings(ctx)
		if err != nil {
			return nil, err
		}
		inv.InvoiceStatus = types.InvoiceStatusPending
		inv.FinalizedAt = lo.ToPtr(now)
		inv.DueDate = lo.ToPtr(addDays(now, settings.NetTermDays))
	}

	// 9. prepaid credits
	if total.IsPositive() {
		txns, err := NewWalletService(s.ServiceParams).ApplyToInvoice(ctx, sub.CustomerID, currency, inv.ID, total, now)
		if err != nil {
			return nil, err
		}
		applied := lo.Reduce(txns, func(acc decimal.Decimal, t *wallet.Transaction, _ int) decimal.Decimal {
			return acc.Add(t.Amount)
		}, decimal.Zero)
		if applied.IsPositive() {
			addLines(newLineItem(ctx, types.LineItemTypeWalletCredit, "", "Prepaid credits applied",
				decimal.NewFromInt(1), applied.Neg(), currency, nil, nil))
			total = total.Sub(applied)
		}
	}

	inv.Amount = total
	if total.IsZero() && inv.InvoiceStatus == types.InvoiceStatusPending {
		inv.InvoiceStatus = types.InvoiceStatusPaid
		inv.PaidAt = lo.ToPtr(now)
	}
	return inv, nil
}

func (s *billingService) CalculateUsage(
	ctx context.Context,
	sub *subscription.Subscription,
	planID string,
	ov *override.PlanOverride,
	from, to time.Time,
) (*UsageResult, error) {
	result := &UsageResult{Total: decimal.Zero}
	if !from.Before(to) {
		return result, nil
	}

	charges, err := s.PlanRepo.ListCharges(ctx, planID)
	if err != nil {
		return nil, err
	}

	overrideSvc := NewOverrideService(s.ServiceParams)
	currency := types.NormalizeCurrency(sub.Currency)

	for _, c := range charges {
		charge := overrideSvc.ResolveCharge(ov, c)

		m, err := s.MeterRepo.Get(ctx, charge.MetricID)
		if err != nil {
			if ierr.IsNotFound(err) {
				s.Logger.Errorw("charge references a missing metric, skipping",
					"charge_id", charge.ID,
					"metric_id", charge.MetricID)
				continue
			}
			return nil, err
		}

		evts, err := s.EventRepo.List(ctx, &events.UsageFilter{
			SubscriptionID: sub.ID,
			MetricCode:     m.Code,
			From:           from,
			To:             to,
		})
		if err != nil {
			return nil, err
		}

		units := aggregation.Aggregate(m.AggregationType, evts, m.FieldName)
		cost, err := pricing.Calculate(pricing.Input{
			Model:      charge.ChargeModel,
			Units:      units,
			Properties: charge.Properties,
			Ranges:     charge.GraduatedRanges,
		})
		if err != nil {
			s.Logger.Errorw("failed to price charge, billing zero",
				"charge_id", charge.ID,
				"charge_model", charge.ChargeModel,
				"subscription_id", sub.ID,
				"error", err)
			cost = decimal.Zero
		}

		if charge.MinAmount != nil && cost.LessThan(*charge.MinAmount) {
			cost = *charge.MinAmount
		}

		cost = types.RoundToCurrencyPrecision(cost, currency)
		if !cost.IsPositive() {
			continue
		}

		name := lo.Ternary(charge.InvoiceDisplayName != "", charge.InvoiceDisplayName, m.Name)
		result.Lines = append(result.Lines, newLineItem(ctx, types.LineItemTypeUsage, charge.ID, name,
			units, cost, currency, lo.ToPtr(from), lo.ToPtr(to)))
		result.Total = result.Total.Add(cost)
		result.ChargeIDs = append(result.ChargeIDs, charge.ID)
	}

	return result, nil
}
