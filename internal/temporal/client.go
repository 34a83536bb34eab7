package temporal

import (
	"context"
	"crypto/tls"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"go.temporal.io/sdk/client"
)

// APIKeyProvider provides headers for API key authentication
type APIKeyProvider struct {
	APIKey    string
	Namespace string
}

// GetHeaders implements client.HeadersProvider
func (a *APIKeyProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	return map[string]string{
		"Authorization":      "Bearer " + a.APIKey,
		"temporal-namespace": a.Namespace,
	}, nil
}

// TemporalClient wraps the Temporal SDK client for application use
type TemporalClient struct {
	Client client.Client
}

func NewTemporalClient(cfg *config.TemporalConfig, log *logger.Logger) (*TemporalClient, error) {
	opts := client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log.GetTemporalLogger(),
	}
	if cfg.APIKey != "" {
		opts.HeadersProvider = &APIKeyProvider{APIKey: cfg.APIKey, Namespace: cfg.Namespace}
	}
	if cfg.TLS {
		opts.ConnectionOptions.TLS = &tls.Config{}
	}

	c, err := client.Dial(opts)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to connect to temporal at %s", cfg.Address).
			Mark(ierr.ErrConfiguration)
	}

	log.Infow("temporal client created", "address", cfg.Address, "namespace", cfg.Namespace)
	return &TemporalClient{Client: c}, nil
}

func (c *TemporalClient) Close() {
	if c != nil && c.Client != nil {
		c.Client.Close()
	}
}
