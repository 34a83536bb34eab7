package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKeyIsStable(t *testing.T) {
	g := NewGenerator()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	local := start.In(time.FixedZone("IST", 5*3600+1800))

	a := g.GenerateKey(ScopeSubscriptionInvoice, map[string]interface{}{"subscription_id": "subs_1", "period_start": start})
	b := g.GenerateKey(ScopeSubscriptionInvoice, map[string]interface{}{"period_start": local, "subscription_id": "subs_1"})
	assert.Equal(t, a, b)
	assert.Regexp(t, `^subscription_invoice-[0-9a-f]{24}$`, a)

	c := g.GenerateKey(ScopeProgressiveInvoice, map[string]interface{}{"subscription_id": "subs_1", "period_start": start})
	assert.NotEqual(t, a, c)
}
