package connection

import "github.com/flexprice/billingcore/internal/types"

// ProviderConnection is a tenant's payment provider configuration. Secrets are
// stored encrypted and only decrypted when building a provider client.
type ProviderConnection struct {
	ID                     string             `db:"id" json:"id"`
	Provider               types.ProviderType `db:"provider" json:"provider"`
	EncryptedSecretKey     string             `db:"encrypted_secret_key" json:"-"`
	EncryptedWebhookSecret string             `db:"encrypted_webhook_secret" json:"-"`
	Active                 bool               `db:"active" json:"active"`
	types.BaseModel
}
