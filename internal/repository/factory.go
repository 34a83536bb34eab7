package repository

import (
	"github.com/flexprice/billingcore/internal/domain/addon"
	"github.com/flexprice/billingcore/internal/domain/connection"
	"github.com/flexprice/billingcore/internal/domain/coupon"
	"github.com/flexprice/billingcore/internal/domain/customer"
	"github.com/flexprice/billingcore/internal/domain/events"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/meter"
	"github.com/flexprice/billingcore/internal/domain/override"
	"github.com/flexprice/billingcore/internal/domain/payment"
	"github.com/flexprice/billingcore/internal/domain/plan"
	"github.com/flexprice/billingcore/internal/domain/settings"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/domain/tax"
	"github.com/flexprice/billingcore/internal/domain/tenant"
	"github.com/flexprice/billingcore/internal/domain/wallet"
	"github.com/flexprice/billingcore/internal/domain/webhook"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	postgresRepo "github.com/flexprice/billingcore/internal/repository/postgres"
	"go.uber.org/fx"
)

// Repositories groups every tenant-scoped store behind one client. The client
// is normally a postgres.Router so each call lands on the tenant's own pool.
type Repositories struct {
	fx.Out

	Meter        meter.Repository
	Event        events.Repository
	Customer     customer.Repository
	Plan         plan.Repository
	Override     override.Repository
	Subscription subscription.Repository
	Invoice      invoice.Repository
	Coupon       coupon.Repository
	Addon        addon.Repository
	Tax          tax.Repository
	Wallet       wallet.Repository
	Payment      payment.Repository
	Webhook      webhook.Repository
	Settings     settings.Repository
	Connection   connection.Repository
}

func NewRepositories(db postgres.IClient, logger *logger.Logger) Repositories {
	return Repositories{
		Meter:        postgresRepo.NewMeterRepository(db, logger),
		Event:        postgresRepo.NewEventRepository(db, logger),
		Customer:     postgresRepo.NewCustomerRepository(db, logger),
		Plan:         postgresRepo.NewPlanRepository(db, logger),
		Override:     postgresRepo.NewOverrideRepository(db, logger),
		Subscription: postgresRepo.NewSubscriptionRepository(db, logger),
		Invoice:      postgresRepo.NewInvoiceRepository(db, logger),
		Coupon:       postgresRepo.NewCouponRepository(db, logger),
		Addon:        postgresRepo.NewAddonRepository(db, logger),
		Tax:          postgresRepo.NewTaxRepository(db, logger),
		Wallet:       postgresRepo.NewWalletRepository(db, logger),
		Payment:      postgresRepo.NewPaymentRepository(db, logger),
		Webhook:      postgresRepo.NewWebhookRepository(db, logger),
		Settings:     postgresRepo.NewSettingsRepository(db, logger),
		Connection:   postgresRepo.NewConnectionRepository(db, logger),
	}
}

func NewTenantRepository(central *postgres.DB, logger *logger.Logger) tenant.Repository {
	return postgresRepo.NewTenantRepository(central, logger)
}
