package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher publishes messages onto a durable topic
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Close() error
}

// Subscriber consumes a topic. Its shape matches message.Subscriber so a PubSub can
// feed the router directly.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// PubSub combines both Publisher and Subscriber interfaces
type PubSub interface {
	Publisher
	Subscriber
}

// Metadata keys every message carries
const (
	MetadataTenantID = "tenant_id"
	MetadataJobType  = "job_type"
)

// watermillPublisher adapts a Publisher to message.Publisher, e.g. for the poison queue
type watermillPublisher struct {
	p Publisher
}

// AsWatermillPublisher exposes p through watermill's publisher interface
func AsWatermillPublisher(p Publisher) message.Publisher {
	return &watermillPublisher{p: p}
}

func (w *watermillPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if err := w.p.Publish(msg.Context(), topic, msg); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the wrapped publisher is owned elsewhere
func (w *watermillPublisher) Close() error {
	return nil
}
