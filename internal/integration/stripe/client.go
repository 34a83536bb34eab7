package stripe

import (
	"github.com/flexprice/billingcore/internal/domain/connection"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// Config holds decrypted Stripe credentials
type Config struct {
	SecretKey     string
	WebhookSecret string
}

// DecryptConfig decrypts the credentials of a Stripe connection
func DecryptConfig(conn *connection.ProviderConnection, codec interfaces.SecretsCodec) (*Config, error) {
	secretKey, err := codec.Decrypt(conn.EncryptedSecretKey)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Stripe secret key could not be decrypted").
			WithReportableDetails(map[string]any{"connection_id": conn.ID}).
			Mark(ierr.ErrConfiguration)
	}
	webhookSecret, err := codec.Decrypt(conn.EncryptedWebhookSecret)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Stripe webhook secret could not be decrypted").
			WithReportableDetails(map[string]any{"connection_id": conn.ID}).
			Mark(ierr.ErrConfiguration)
	}
	if secretKey == "" {
		return nil, ierr.NewError("stripe secret key is empty").
			WithHint("Stripe connection has no secret key").
			Mark(ierr.ErrConfiguration)
	}
	return &Config{SecretKey: secretKey, WebhookSecret: webhookSecret}, nil
}

// NewProviderFromConnection builds a Stripe provider from a stored connection
func NewProviderFromConnection(conn *connection.ProviderConnection, codec interfaces.SecretsCodec, log *logger.Logger) (*Provider, error) {
	cfg, err := DecryptConfig(conn, codec)
	if err != nil {
		return nil, err
	}
	return NewProvider(stripe.NewClient(cfg.SecretKey, nil), cfg.WebhookSecret, log), nil
}
