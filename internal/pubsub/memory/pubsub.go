package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
)

// PubSub keeps every topic of the process on one in-memory gochannel.
// Nothing survives a restart; use it for single-node runs and tests.
type PubSub struct {
	channel *gochannel.GoChannel
	logger  *logger.Logger
}

func NewPubSub(logger *logger.Logger) pubsub.PubSub {
	return &PubSub{
		channel: gochannel.NewGoChannel(
			gochannel.Config{
				// jobs enqueued before the router subscribes are replayed to it
				Persistent:          true,
				OutputChannelBuffer: 100,
			},
			watermill.NewStdLogger(false, false),
		),
		logger: logger,
	}
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	if err := p.channel.Publish(topic, msg); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to publish to %s", topic).
			Mark(ierr.ErrSystem)
	}
	p.logger.WithContext(ctx).Debugw("published message",
		"topic", topic,
		"message_id", msg.UUID,
		"tenant_id", msg.Metadata.Get(pubsub.MetadataTenantID),
	)
	return nil
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.channel.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	return p.channel.Close()
}
