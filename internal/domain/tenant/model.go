package tenant

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
)

// Tenant maps a tenant identity to its isolated schema. It lives in the central schema.
type Tenant struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Schema    string       `db:"schema_name" json:"schema_name"`
	Status    types.Status `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
