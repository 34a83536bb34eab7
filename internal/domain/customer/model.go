package customer

import (
	"github.com/flexprice/billingcore/internal/types"
)

// Customer is the billed party. ProviderCustomerRef is the payment provider's
// customer reference, used for one-off charges.
type Customer struct {
	ID                  string         `db:"id" json:"id"`
	ExternalID          string         `db:"external_id" json:"external_id"`
	Name                string         `db:"name" json:"name"`
	Email               string         `db:"email" json:"email"`
	ProviderCustomerRef string         `db:"provider_customer_ref" json:"provider_customer_ref,omitempty"`
	Metadata            types.Metadata `db:"metadata" json:"metadata"`
	types.BaseModel
}
