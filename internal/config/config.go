package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	TenantPool TenantPoolConfig `mapstructure:"tenant_pool" validate:"required"`
	Kafka      KafkaConfig
	Jobs       JobsConfig    `validate:"required"`
	Webhook    Webhook       `validate:"required"`
	Billing    BillingConfig `validate:"required"`
	Scheduler  SchedulerConfig
	Temporal   TemporalConfig
	Secrets    SecretsConfig
	Sentry     SentryConfig
	Cache      CacheConfig
	Documents  DocumentsConfig
	Profiling  ProfilingConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
	// IngestRate limits usage events per second per tenant; zero disables the limit
	IngestRate  float64 `mapstructure:"ingest_rate" validate:"gte=0"`
	IngestBurst int     `mapstructure:"ingest_burst" validate:"gte=0"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
	// ConnectTimeout bounds how long startup keeps retrying the central database
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// TenantPoolConfig bounds the per-tenant connection pool registry
type TenantPoolConfig struct {
	MaxTenants  int           `mapstructure:"max_tenants" validate:"required,min=1"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl" validate:"required"`
	MaxOpenConn int           `mapstructure:"max_open_conns"`
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string               `mapstructure:"consumer_group"`
	ClientID      string               `mapstructure:"client_id"`
	TLS           bool                 `mapstructure:"tls"`
	UseSASL       bool                 `mapstructure:"use_sasl"`
	SASLMechanism sarama.SASLMechanism `mapstructure:"sasl_mechanism"`
	SASLUser      string               `mapstructure:"sasl_user"`
	SASLPassword  string               `mapstructure:"sasl_password"`
}

// JobsConfig names the durable queues work units travel on
type JobsConfig struct {
	PubSub           types.PubSubType `mapstructure:"pubsub" validate:"required"`
	RateTopic        string           `mapstructure:"rate_topic" validate:"required"`
	FinalizeTopic    string           `mapstructure:"finalize_topic" validate:"required"`
	ChargeTopic      string           `mapstructure:"charge_topic" validate:"required"`
	RetryTopic       string           `mapstructure:"retry_topic" validate:"required"`
	ProgressiveTopic string           `mapstructure:"progressive_topic" validate:"required"`
	UsageTopic       string           `mapstructure:"usage_topic" validate:"required"`
	NotifyTopic      string           `mapstructure:"notify_topic" validate:"required"`
	Retry            RetryConfig      `mapstructure:"retry"`
}

// RetryConfig is the bounded exponential backoff applied by queue consumers
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// BillingConfig holds tenant-independent defaults for rating and collection
type BillingConfig struct {
	DefaultGracePeriodDays int   `mapstructure:"default_grace_period_days"`
	DefaultNetTermDays     int   `mapstructure:"default_net_term_days"`
	DunningScheduleDays    []int `mapstructure:"dunning_schedule_days" validate:"required,min=1"`
	DunningMaxAttempts     int   `mapstructure:"dunning_max_attempts" validate:"required,min=1"`
	SweepBatchSize         int   `mapstructure:"sweep_batch_size"`
}

// SchedulerConfig holds the cron specs of the in-process sweeps
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	LifecycleSpec    string `mapstructure:"lifecycle_spec"`
	GracePeriodSpec  string `mapstructure:"grace_period_spec"`
	PaymentRetrySpec string `mapstructure:"payment_retry_spec"`
	WalletExpirySpec string `mapstructure:"wallet_expiry_spec"`
	// Concurrency bounds how many tenants one sweep processes at once
	Concurrency int `mapstructure:"concurrency"`
}

// DocumentsConfig locates the typst toolchain that renders invoice documents
type DocumentsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TypstBinary string `mapstructure:"typst_binary"`
	TemplateDir string `mapstructure:"template_dir"`
	FontDir     string `mapstructure:"font_dir"`
}

// ProfilingConfig configures continuous profiling pushed to a pyroscope server
type ProfilingConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	ServerAddress   string   `mapstructure:"server_address"`
	ApplicationName string   `mapstructure:"application_name"`
	SampleRate      uint32   `mapstructure:"sample_rate"`
	ProfileTypes    []string `mapstructure:"profile_types"`
	BasicAuthUser   string   `mapstructure:"basic_auth_user"`
	BasicAuthPass   string   `mapstructure:"basic_auth_pass"`
}

type TemporalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Address       string `mapstructure:"address"`
	Namespace     string `mapstructure:"namespace"`
	APIKey        string `mapstructure:"api_key"`
	TLS           bool   `mapstructure:"tls"`
	TaskQueue     string `mapstructure:"task_queue"`
	SweepCronSpec string `mapstructure:"sweep_cron_spec"`
}

type SecretsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	// PreviousKeys still decrypt credentials sealed before a key rotation
	PreviousKeys []string `mapstructure:"previous_keys"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func NewConfig() (*Configuration, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billingcore")

	v.SetEnvPrefix("BILLINGCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
		fmt.Printf("No config file found, using defaults and environment: %v\n", err)
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.ingest_rate", d.Server.IngestRate)
	v.SetDefault("server.ingest_burst", d.Server.IngestBurst)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime_minutes", d.Postgres.ConnMaxLifetimeMinutes)
	v.SetDefault("postgres.connect_timeout", d.Postgres.ConnectTimeout)
	v.SetDefault("tenant_pool.max_tenants", d.TenantPool.MaxTenants)
	v.SetDefault("tenant_pool.idle_ttl", d.TenantPool.IdleTTL)
	v.SetDefault("tenant_pool.max_open_conns", d.TenantPool.MaxOpenConn)
	v.SetDefault("kafka.consumer_group", d.Kafka.ConsumerGroup)
	v.SetDefault("kafka.client_id", d.Kafka.ClientID)
	v.SetDefault("jobs.pubsub", d.Jobs.PubSub)
	v.SetDefault("jobs.rate_topic", d.Jobs.RateTopic)
	v.SetDefault("jobs.finalize_topic", d.Jobs.FinalizeTopic)
	v.SetDefault("jobs.charge_topic", d.Jobs.ChargeTopic)
	v.SetDefault("jobs.retry_topic", d.Jobs.RetryTopic)
	v.SetDefault("jobs.progressive_topic", d.Jobs.ProgressiveTopic)
	v.SetDefault("jobs.usage_topic", d.Jobs.UsageTopic)
	v.SetDefault("jobs.notify_topic", d.Jobs.NotifyTopic)
	v.SetDefault("jobs.retry.max_retries", d.Jobs.Retry.MaxRetries)
	v.SetDefault("jobs.retry.initial_interval", d.Jobs.Retry.InitialInterval)
	v.SetDefault("jobs.retry.max_interval", d.Jobs.Retry.MaxInterval)
	v.SetDefault("jobs.retry.multiplier", d.Jobs.Retry.Multiplier)
	v.SetDefault("webhook.enabled", d.Webhook.Enabled)
	v.SetDefault("webhook.topic", d.Webhook.Topic)
	v.SetDefault("webhook.pubsub", d.Webhook.PubSub)
	v.SetDefault("webhook.timeout", d.Webhook.Timeout)
	v.SetDefault("webhook.max_retries", d.Webhook.MaxRetries)
	v.SetDefault("webhook.initial_interval", d.Webhook.InitialInterval)
	v.SetDefault("billing.default_grace_period_days", d.Billing.DefaultGracePeriodDays)
	v.SetDefault("billing.default_net_term_days", d.Billing.DefaultNetTermDays)
	v.SetDefault("billing.dunning_schedule_days", d.Billing.DunningScheduleDays)
	v.SetDefault("billing.dunning_max_attempts", d.Billing.DunningMaxAttempts)
	v.SetDefault("billing.sweep_batch_size", d.Billing.SweepBatchSize)
	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.lifecycle_spec", d.Scheduler.LifecycleSpec)
	v.SetDefault("scheduler.grace_period_spec", d.Scheduler.GracePeriodSpec)
	v.SetDefault("scheduler.payment_retry_spec", d.Scheduler.PaymentRetrySpec)
	v.SetDefault("scheduler.wallet_expiry_spec", d.Scheduler.WalletExpirySpec)
	v.SetDefault("scheduler.concurrency", d.Scheduler.Concurrency)
	v.SetDefault("temporal.enabled", d.Temporal.Enabled)
	v.SetDefault("temporal.address", d.Temporal.Address)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
	v.SetDefault("temporal.sweep_cron_spec", d.Temporal.SweepCronSpec)
	v.SetDefault("documents.enabled", d.Documents.Enabled)
	v.SetDefault("documents.typst_binary", d.Documents.TypstBinary)
	v.SetDefault("documents.template_dir", d.Documents.TemplateDir)
	v.SetDefault("profiling.enabled", d.Profiling.Enabled)
	v.SetDefault("profiling.server_address", d.Profiling.ServerAddress)
	v.SetDefault("profiling.application_name", d.Profiling.ApplicationName)
	v.SetDefault("profiling.sample_rate", d.Profiling.SampleRate)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts, tests or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "billingcore",
			DBName:                 "billingcore",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
			ConnectTimeout:         30 * time.Second,
		},
		Kafka:      KafkaConfig{Brokers: []string{"localhost:29092"}, ConsumerGroup: "billingcore", ClientID: "billingcore"},
		TenantPool: TenantPoolConfig{MaxTenants: 64, IdleTTL: 15 * time.Minute, MaxOpenConn: 5},
		Jobs: JobsConfig{
			PubSub:           types.MemoryPubSub,
			RateTopic:        "jobs.rate_subscription",
			FinalizeTopic:    "jobs.finalize_invoice",
			ChargeTopic:      "jobs.charge_invoice",
			RetryTopic:       "jobs.payment_retry",
			ProgressiveTopic: "jobs.progressive_check",
			UsageTopic:       "usage.events",
			NotifyTopic:      "notifications",
			Retry: RetryConfig{
				MaxRetries:      3,
				InitialInterval: time.Second,
				MaxInterval:     time.Minute,
				Multiplier:      2,
			},
		},
		Webhook: Webhook{
			Enabled:         true,
			Topic:           "webhooks",
			PubSub:          types.MemoryPubSub,
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			InitialInterval: time.Second,
		},
		Billing: BillingConfig{
			DefaultGracePeriodDays: 0,
			DefaultNetTermDays:     0,
			DunningScheduleDays:    []int{1, 3, 7},
			DunningMaxAttempts:     3,
			SweepBatchSize:         100,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			LifecycleSpec:    "@every 1m",
			GracePeriodSpec:  "@every 5m",
			PaymentRetrySpec: "@every 15m",
			WalletExpirySpec: "@hourly",
			Concurrency:      4,
		},
		Temporal: TemporalConfig{
			Address:       "localhost:7233",
			Namespace:     "default",
			TaskQueue:     "billingcore-sweeps",
			SweepCronSpec: "*/5 * * * *",
		},
		Cache:    CacheConfig{Enabled: true, TTL: 10 * time.Minute},
		Documents: DocumentsConfig{
			TypstBinary: "typst",
			TemplateDir: "internal/typst/templates",
		},
		Profiling: ProfilingConfig{
			ServerAddress:   "http://localhost:4040",
			ApplicationName: "billingcore",
			SampleRate:      100,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetTenantDSN returns the DSN of the tenant's isolated schema
func (c PostgresConfig) GetTenantDSN(schema string) string {
	return fmt.Sprintf("%s search_path=%s", c.GetDSN(), schema)
}
