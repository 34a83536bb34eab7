package service

import (
	"context"
	"sort"

	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/tax"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TaxService resolves which taxes apply to an invoice
type TaxService interface {
	// ResolveTaxes returns the first non-empty level of charge, plan, customer and
	// tenant default assignments. Levels are never merged.
	ResolveTaxes(ctx context.Context, customerID, planID string, chargeIDs []string) ([]*tax.Tax, error)
	// TaxLines prices one tax line per tax against taxable, which is floored at zero
	TaxLines(ctx context.Context, taxes []*tax.Tax, taxable decimal.Decimal, currency string) []*invoice.LineItem
}

type taxService struct {
	ServiceParams
}

func NewTaxService(params ServiceParams) TaxService {
	return &taxService{ServiceParams: params}
}

func (s *taxService) ResolveTaxes(ctx context.Context, customerID, planID string, chargeIDs []string) ([]*tax.Tax, error) {
	// charge level is the union over the charges billed on this invoice
	var chargeTaxes []*tax.Tax
	for _, chargeID := range chargeIDs {
		assigned, err := s.TaxRepo.ListAssigned(ctx, types.TaxScopeCharge, chargeID)
		if err != nil {
			return nil, err
		}
		chargeTaxes = append(chargeTaxes, assigned...)
	}
	if len(chargeTaxes) > 0 {
		return normaliseTaxes(chargeTaxes), nil
	}

	for _, level := range []struct {
		scope    types.TaxScope
		entityID string
	}{
		{types.TaxScopePlan, planID},
		{types.TaxScopeCustomer, customerID},
	} {
		if level.entityID == "" {
			continue
		}
		assigned, err := s.TaxRepo.ListAssigned(ctx, level.scope, level.entityID)
		if err != nil {
			return nil, err
		}
		if len(assigned) > 0 {
			return normaliseTaxes(assigned), nil
		}
	}

	defaults, err := s.defaultTaxes(ctx)
	if err != nil {
		return nil, err
	}
	return normaliseTaxes(defaults), nil
}

func (s *taxService) TaxLines(ctx context.Context, taxes []*tax.Tax, taxable decimal.Decimal, currency string) []*invoice.LineItem {
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	lines := make([]*invoice.LineItem, 0, len(taxes))
	for _, t := range taxes {
		if t.Rate.IsNegative() {
			s.Logger.Warnw("skipping tax with negative rate", "tax_id", t.ID, "rate", t.Rate)
			continue
		}
		amount := types.RoundToCurrencyPrecision(taxable.Mul(t.Rate).Div(decimal.NewFromInt(100)), currency)
		lines = append(lines, newLineItem(ctx, types.LineItemTypeTax, t.ID, t.Name, taxable, amount, currency, nil, nil))
	}
	return lines
}

func (s *taxService) defaultTaxes(ctx context.Context) ([]*tax.Tax, error) {
	return cache.Fetch(ctx, s.Cache, cache.TenantKey(ctx, cache.PrefixDefaultTax), s.TaxRepo.ListDefaults)
}

// normaliseTaxes drops duplicates and orders by id so tax lines are stable
func normaliseTaxes(taxes []*tax.Tax) []*tax.Tax {
	out := lo.UniqBy(taxes, func(t *tax.Tax) string { return t.ID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
