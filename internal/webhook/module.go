package webhook

import (
	"context"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/webhook"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/httpclient"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/pubsub/kafka"
	"github.com/flexprice/billingcore/internal/pubsub/memory"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/webhook/handler"
	"github.com/flexprice/billingcore/internal/webhook/publisher"
	"go.uber.org/fx"
)

// PubSubName tags the transport webhook events travel on
const PubSubName = `name:"webhook_pubsub"`

// Module provides all webhook-related dependencies
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(providePubSub, fx.ResultTags(PubSubName)),
		fx.Annotate(publisher.NewPublisher, fx.ParamTags(PubSubName)),
		fx.Annotate(provideHandler, fx.ParamTags(PubSubName)),
	),
)

func provideHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	repo webhook.Repository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) handler.Handler {
	return handler.NewHandler(pubSub, cfg, repo, httpclient.NewDefaultClient(cfg.Webhook.Timeout), logger, metrics)
}

func providePubSub(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	logger *logger.Logger,
) (pubsub.PubSub, error) {
	var (
		ps  pubsub.PubSub
		err error
	)

	switch cfg.Webhook.PubSub {
	case types.MemoryPubSub:
		ps = memory.NewPubSub(logger)
	case types.KafkaPubSub:
		ps, err = kafka.NewPubSub(cfg, logger, cfg.Kafka.ConsumerGroup+".webhooks")
		if err != nil {
			return nil, err
		}
	default:
		return nil, ierr.NewError("unsupported pubsub type").
			WithHintf("webhook.pubsub must be %q or %q", types.MemoryPubSub, types.KafkaPubSub).
			Mark(ierr.ErrConfiguration)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ps.Close()
		},
	})
	return ps, nil
}
