package config

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
)

// Webhook represents the configuration for the webhook system.
// Endpoints and secrets live per tenant in the tenant store, not here.
type Webhook struct {
	Enabled         bool             `mapstructure:"enabled"`
	Topic           string           `mapstructure:"topic" validate:"required"`
	PubSub          types.PubSubType `mapstructure:"pubsub" validate:"required"`
	Timeout         time.Duration    `mapstructure:"timeout" validate:"required"`
	MaxRetries      int              `mapstructure:"max_retries"`
	InitialInterval time.Duration    `mapstructure:"initial_interval"`
}
