package service

import (
	"testing"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/override"
	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/domain/tax"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type TaxServiceSuite struct {
	billingFixtures
	service TaxService
}

func TestTaxService(t *testing.T) {
	suite.Run(t, new(TaxServiceSuite))
}

func (s *TaxServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewTaxService(s.params)

	s.createTax("tax_default", "5", true)
	s.createTax("tax_customer", "10", false)
	s.createTax("tax_plan", "15", false)
	s.createTax("tax_charge_a", "20", false)
	s.createTax("tax_charge_b", "2", false)
}

func taxIDs(taxes []*tax.Tax) []string {
	return lo.Map(taxes, func(t *tax.Tax, _ int) string { return t.ID })
}

func (s *TaxServiceSuite) TestFirstNonEmptyLevelWins() {
	ctx := s.GetContext()
	resolve := func() []string {
		taxes, err := s.service.ResolveTaxes(ctx, s.customer.ID, "plan_basic", []string{"chg_a", "chg_b"})
		s.Require().NoError(err)
		return taxIDs(taxes)
	}

	s.Equal([]string{"tax_default"}, resolve())

	s.assignTax("tax_customer", types.TaxScopeCustomer, s.customer.ID)
	s.Equal([]string{"tax_customer"}, resolve())

	s.assignTax("tax_plan", types.TaxScopePlan, "plan_basic")
	s.Equal([]string{"tax_plan"}, resolve())

	s.assignTax("tax_charge_b", types.TaxScopeCharge, "chg_b")
	s.assignTax("tax_charge_a", types.TaxScopeCharge, "chg_a")
	s.assignTax("tax_charge_a", types.TaxScopeCharge, "chg_b")
	s.Equal([]string{"tax_charge_a", "tax_charge_b"}, resolve())
}

func (s *TaxServiceSuite) TestTaxLinesFloorNegativeBase() {
	taxes, err := s.service.ResolveTaxes(s.GetContext(), s.customer.ID, "", nil)
	s.NoError(err)

	lines := s.service.TaxLines(s.GetContext(), taxes, dec("-20"), "usd")
	s.Require().Len(lines, 1)
	s.True(lines[0].Amount.IsZero())

	lines = s.service.TaxLines(s.GetContext(), taxes, dec("33.33"), "usd")
	s.Require().Len(lines, 1)
	// 5% of 33.33 rounds half up to the cent
	s.True(dec("1.67").Equal(lines[0].Amount), "got %s", lines[0].Amount)
}

type OverrideServiceSuite struct {
	billingFixtures
	service OverrideService
}

func TestOverrideService(t *testing.T) {
	suite.Run(t, new(OverrideServiceSuite))
}

func (s *OverrideServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewOverrideService(s.params)
	s.createPlan("plan_basic", "49.00", func(p *plan.Plan) {
		p.MinimumCommitment = lo.ToPtr(dec("100"))
	})
}

func (s *OverrideServiceSuite) TestOverrideReplacesPlanTerms() {
	ctx := s.GetContext()
	ov, err := s.service.CreateOverride(ctx, &dto.CreateOverrideRequest{
		CustomerID:        s.customer.ID,
		PlanID:            "plan_basic",
		Prices:            map[string]decimal.Decimal{"USD": dec("39")},
		MinimumCommitment: lo.ToPtr(dec("0")),
		Charges: []override.ChargeOverride{{
			ChargeID:   "chg_api",
			Properties: types.Properties{types.ChargePropertyAmount: "0.5"},
		}},
	})
	s.Require().NoError(err)

	price, ok, err := s.service.ResolvePlanPrice(ctx, ov, "plan_basic", "usd")
	s.NoError(err)
	s.True(ok)
	s.True(dec("39").Equal(price))

	pl, err := s.GetStores().PlanRepo.GetPlan(ctx, "plan_basic")
	s.NoError(err)
	commitment := s.service.ResolveMinimumCommitment(ov, pl)
	s.Require().NotNil(commitment)
	s.True(commitment.IsZero())

	charge := s.service.ResolveCharge(ov, &plan.Charge{
		ID:          "chg_api",
		ChargeModel: types.ChargeModelStandard,
		Properties:  types.Properties{types.ChargePropertyAmount: "1"},
	})
	s.Equal("0.5", charge.Properties[types.ChargePropertyAmount])

	_, err = s.service.CreateOverride(ctx, &dto.CreateOverrideRequest{
		CustomerID: s.customer.ID,
		PlanID:     "plan_basic",
	})
	s.True(ierr.IsAlreadyExists(err))
}

func (s *OverrideServiceSuite) TestNoOverrideFallsBackToPlan() {
	ctx := s.GetContext()
	price, ok, err := s.service.ResolvePlanPrice(ctx, nil, "plan_basic", "usd")
	s.NoError(err)
	s.True(ok)
	s.True(dec("49").Equal(price))

	_, ok, err = s.service.ResolvePlanPrice(ctx, nil, "plan_basic", "eur")
	s.NoError(err)
	s.False(ok)
}
