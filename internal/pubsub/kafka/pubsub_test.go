package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/stretchr/testify/assert"
)

func TestSaramaConfigSASLForcesTLS(t *testing.T) {
	sc := SaramaConfig(&config.KafkaConfig{
		ClientID:      "billingcore",
		UseSASL:       true,
		SASLMechanism: sarama.SASLTypePlaintext,
		SASLUser:      "user",
		SASLPassword:  "secret",
	})

	assert.True(t, sc.Net.SASL.Enable)
	assert.True(t, sc.Net.TLS.Enable)
	assert.Equal(t, "billingcore", sc.ClientID)
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.NoError(t, sc.Validate())
}

func TestSaramaConfigPlain(t *testing.T) {
	sc := SaramaConfig(&config.KafkaConfig{ClientID: "billingcore"})
	assert.False(t, sc.Net.SASL.Enable)
	assert.False(t, sc.Net.TLS.Enable)
}

func TestMessagesAreKeyedByTenant(t *testing.T) {
	msg := message.NewMessage("msg_1", nil)
	msg.Metadata.Set(pubsub.MetadataTenantID, "tenant_a")

	key, err := tenantKey("jobs.rate", msg)
	assert.NoError(t, err)
	assert.Equal(t, "tenant_a", key)

	key, err = tenantKey("jobs.rate", message.NewMessage("msg_2", nil))
	assert.NoError(t, err)
	assert.Equal(t, "msg_2", key)
}
