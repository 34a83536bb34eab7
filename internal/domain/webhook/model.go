package webhook

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
)

// Endpoint is a tenant's webhook destination. Secret is the signing key in
// Standard Webhooks form (whsec_ prefixed base64).
type Endpoint struct {
	ID             string         `db:"id" json:"id"`
	URL            string         `db:"url" json:"url"`
	Secret         string         `db:"secret" json:"-"`
	Enabled        bool           `db:"enabled" json:"enabled"`
	ExcludedEvents types.Metadata `db:"excluded_events" json:"excluded_events,omitempty"`
	types.BaseModel
}

// Accepts reports whether the endpoint subscribes to eventName
func (e *Endpoint) Accepts(eventName string) bool {
	if !e.Enabled {
		return false
	}
	_, excluded := e.ExcludedEvents[eventName]
	return !excluded
}

// Log is an append-only record of one delivery attempt
type Log struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	EventID      string    `db:"event_id" json:"event_id"`
	EventName    string    `db:"event_name" json:"event_name"`
	EndpointURL  string    `db:"endpoint_url" json:"endpoint_url"`
	StatusCode   int       `db:"status_code" json:"status_code"`
	Success      bool      `db:"success" json:"success"`
	AttemptCount int       `db:"attempt_count" json:"attempt_count"`
	ResponseBody string    `db:"response_body" json:"response_body,omitempty"`
	Error        string    `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
