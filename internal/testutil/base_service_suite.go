package testutil

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds the in-memory repositories of a test
type Stores struct {
	MeterRepo    *InMemoryMeterStore
	EventRepo    *InMemoryEventStore
	CustomerRepo *InMemoryCustomerStore
	PlanRepo     *InMemoryPlanStore
	OverrideRepo *InMemoryOverrideStore
	SubRepo      *InMemorySubscriptionStore
	InvoiceRepo  *InMemoryInvoiceStore
	CouponRepo   *InMemoryCouponStore
	AddonRepo    *InMemoryAddOnStore
	TaxRepo      *InMemoryTaxStore
	WalletRepo   *InMemoryWalletStore
	PaymentRepo  *InMemoryPaymentStore
	SettingsRepo *InMemorySettingsStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *MockPostgresClient
	logger    *logger.Logger
	config    *config.Configuration
	cache     cache.Cache
	metrics   *metrics.Metrics
	queue     *RecordingQueue
	webhooks  *RecordingWebhookPublisher
	notifier  *RecordingNotifier
	renderer  *StaticRenderer
	provider  *MockPaymentProvider
	providers *StaticProviderResolver
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.config = config.GetDefaultConfig()
	s.cache = cache.NewInMemoryCache(s.config)
	s.metrics = metrics.NewMetrics()
	s.db = NewMockPostgresClient()
	s.queue = NewRecordingQueue()
	s.webhooks = NewRecordingWebhookPublisher()
	s.notifier = NewRecordingNotifier()
	s.renderer = &StaticRenderer{Content: []byte("%PDF-1.7")}
	s.provider = &MockPaymentProvider{}
	s.providers = &StaticProviderResolver{Provider: s.provider}
	s.now = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.setupStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		MeterRepo:    NewInMemoryMeterStore(),
		EventRepo:    NewInMemoryEventStore(),
		CustomerRepo: NewInMemoryCustomerStore(),
		PlanRepo:     NewInMemoryPlanStore(),
		OverrideRepo: NewInMemoryOverrideStore(),
		SubRepo:      NewInMemorySubscriptionStore(),
		InvoiceRepo:  NewInMemoryInvoiceStore(),
		CouponRepo:   NewInMemoryCouponStore(),
		AddonRepo:    NewInMemoryAddOnStore(),
		TaxRepo:      NewInMemoryTaxStore(),
		WalletRepo:   NewInMemoryWalletStore(),
		PaymentRepo:  NewInMemoryPaymentStore(),
		SettingsRepo: NewInMemorySettingsStore(),
	}
}

func (s *BaseServiceTestSuite) GetContext() context.Context { return s.ctx }

func (s *BaseServiceTestSuite) GetStores() Stores { return s.stores }

func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient { return s.db }

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger { return s.logger }

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration { return s.config }

func (s *BaseServiceTestSuite) GetCache() cache.Cache { return s.cache }

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics { return s.metrics }

func (s *BaseServiceTestSuite) GetQueue() *RecordingQueue { return s.queue }

func (s *BaseServiceTestSuite) GetWebhooks() *RecordingWebhookPublisher { return s.webhooks }

func (s *BaseServiceTestSuite) GetNotifier() *RecordingNotifier { return s.notifier }

func (s *BaseServiceTestSuite) GetRenderer() *StaticRenderer { return s.renderer }

func (s *BaseServiceTestSuite) GetProvider() *MockPaymentProvider { return s.provider }

func (s *BaseServiceTestSuite) GetProviders() *StaticProviderResolver { return s.providers }

// GetNow returns the fixed clock of the test
func (s *BaseServiceTestSuite) GetNow() time.Time { return s.now }
