package jobs

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/types"
)

// Queue enqueues jobs onto durable topics
type Queue interface {
	Enqueue(ctx context.Context, topic string, job Job) error
}

type queue struct {
	pubSub pubsub.Publisher
	logger *logger.Logger
}

// NewQueue publishes jobs on pubSub. The tenant in ctx travels as message metadata.
func NewQueue(pubSub pubsub.Publisher, logger *logger.Logger) Queue {
	return &queue{pubSub: pubSub, logger: logger}
}

func (q *queue) Enqueue(ctx context.Context, topic string, job Job) error {
	tenantID := types.GetTenantID(ctx)
	if tenantID == "" {
		return ierr.NewError("job enqueued without tenant").
			WithHintf("Job %s requires a tenant scope", job.JobType()).
			Mark(ierr.ErrValidation)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal job").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(pubsub.MetadataTenantID, tenantID)
	msg.Metadata.Set(pubsub.MetadataJobType, job.JobType())

	if err := q.pubSub.Publish(ctx, topic, msg); err != nil {
		q.logger.Errorw("failed to enqueue job",
			"error", err,
			"topic", topic,
			"job_type", job.JobType(),
			"tenant_id", tenantID,
		)
		return ierr.WithError(err).
			WithHint("Failed to enqueue job").
			Mark(ierr.ErrSystem)
	}

	q.logger.Debugw("enqueued job",
		"topic", topic,
		"job_type", job.JobType(),
		"tenant_id", tenantID,
		"message_uuid", msg.UUID,
	)
	return nil
}

// Decode unmarshals a message payload into job
func Decode(msg *message.Message, job Job) error {
	if err := json.Unmarshal(msg.Payload, job); err != nil {
		return ierr.WithError(err).
			WithHintf("Malformed %s job", job.JobType()).
			WithReportableDetails(map[string]any{"message_uuid": msg.UUID}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
