package service

import (
	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/addon"
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
	"github.com/flexprice/billingcore/internal/domain/wallet"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/postgres"
	webhookPublisher "github.com/flexprice/billingcore/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	DB      postgres.IClient
	Cache   cache.Cache
	Metrics *metrics.Metrics

	// Repositories
	MeterRepo    meter.Repository
	EventRepo    events.Repository
	CustomerRepo customer.Repository
	PlanRepo     plan.Repository
	OverrideRepo override.Repository
	SubRepo      subscription.Repository
	InvoiceRepo  invoice.Repository
	CouponRepo   coupon.Repository
	AddonRepo    addon.Repository
	TaxRepo      tax.Repository
	WalletRepo   wallet.Repository
	PaymentRepo  payment.Repository
	SettingsRepo settings.Repository

	// Publishers
	WebhookPublisher webhookPublisher.WebhookPublisher
	Jobs             jobs.Queue

	// Collaborators
	Notifier  interfaces.Notifier
	Renderer  interfaces.DocumentRenderer
	Providers interfaces.ProviderResolver
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	metrics *metrics.Metrics,
	meterRepo meter.Repository,
	eventRepo events.Repository,
	customerRepo customer.Repository,
	planRepo plan.Repository,
	overrideRepo override.Repository,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	couponRepo coupon.Repository,
	addonRepo addon.Repository,
	taxRepo tax.Repository,
	walletRepo wallet.Repository,
	paymentRepo payment.Repository,
	settingsRepo settings.Repository,
	webhookPublisher webhookPublisher.WebhookPublisher,
	jobs jobs.Queue,
	notifier interfaces.Notifier,
	renderer interfaces.DocumentRenderer,
	providers interfaces.ProviderResolver,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Cache:            cache,
		Metrics:          metrics,
		MeterRepo:        meterRepo,
		EventRepo:        eventRepo,
		CustomerRepo:     customerRepo,
		PlanRepo:         planRepo,
		OverrideRepo:     overrideRepo,
		SubRepo:          subRepo,
		InvoiceRepo:      invoiceRepo,
		CouponRepo:       couponRepo,
		AddonRepo:        addonRepo,
		TaxRepo:          taxRepo,
		WalletRepo:       walletRepo,
		PaymentRepo:      paymentRepo,
		SettingsRepo:     settingsRepo,
		WebhookPublisher: webhookPublisher,
		Jobs:             jobs,
		Notifier:         notifier,
		Renderer:         renderer,
		Providers:        providers,
	}
}
