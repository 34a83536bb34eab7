package kafka

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
)

type PubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *logger.Logger
}

// NewPubSub connects a kafka publisher and a consumer-group subscriber.
// consumerGroup overrides cfg.Kafka.ConsumerGroup when set so the webhook
// and job consumers can scale independently.
//
// Messages are keyed by tenant, so one tenant's jobs stay on one partition
// and are consumed in publish order.
func NewPubSub(cfg *config.Configuration, logger *logger.Logger, consumerGroup string) (pubsub.PubSub, error) {
	saramaConfig := SaramaConfig(&cfg.Kafka)
	if consumerGroup == "" {
		consumerGroup = cfg.Kafka.ConsumerGroup
	}

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             kafka.NewWithPartitioningMarshaler(tenantKey),
			OverwriteSaramaConfig: saramaConfig,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect kafka publisher").
			WithReportableDetails(map[string]any{"brokers": cfg.Kafka.Brokers}).
			Mark(ierr.ErrConfiguration)
	}

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Kafka.Brokers,
			ConsumerGroup:         consumerGroup,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		_ = publisher.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to connect kafka subscriber").
			WithReportableDetails(map[string]any{"brokers": cfg.Kafka.Brokers, "consumer_group": consumerGroup}).
			Mark(ierr.ErrConfiguration)
	}

	logger.Infow("connected to kafka", "brokers", cfg.Kafka.Brokers, "consumer_group", consumerGroup)
	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

// SaramaConfig builds the client config shared by the publisher and the subscriber
func SaramaConfig(cfg *config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.ClientID = cfg.ClientID

	// a new consumer group must not skip jobs queued before it joined
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = 5 * time.Second
	sc.Consumer.Offsets.Retry.Max = 3

	// watermill's sync publisher requires both
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	// SASL credentials never travel in the clear
	if cfg.TLS || cfg.UseSASL {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.UseSASL {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = cfg.SASLMechanism
		sc.Net.SASL.User = cfg.SASLUser
		sc.Net.SASL.Password = cfg.SASLPassword
	}
	return sc
}

func tenantKey(topic string, msg *message.Message) (string, error) {
	if tenantID := msg.Metadata.Get(pubsub.MetadataTenantID); tenantID != "" {
		return tenantID, nil
	}
	return msg.UUID, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

// Close closes both sides and reports every failure
func (p *PubSub) Close() error {
	return ierr.Join(p.publisher.Close(), p.subscriber.Close())
}
