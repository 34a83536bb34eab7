package router

import (
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/httpclient"
	"github.com/flexprice/billingcore/internal/logger"
)

// shouldRetry reports whether redelivering the message can succeed.
// Domain outcomes such as validation or not-found never heal on their own.
func shouldRetry(logger *logger.Logger, err error) bool {
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests,
			httpErr.StatusCode == http.StatusRequestTimeout,
			httpErr.StatusCode >= http.StatusInternalServerError:
			logger.Debugw("retrying due to HTTP error",
				"status_code", httpErr.StatusCode,
				"error", httpErr,
			)
			return true
		}
		logger.Debugw("non-retryable HTTP error",
			"status_code", httpErr.StatusCode,
			"error", httpErr,
		)
		return false
	}

	return ierr.IsRetryable(err)
}

// RetryMiddleware applies bounded exponential backoff to a single handler
func RetryMiddleware(cfg config.RetryConfig, logger *logger.Logger) message.HandlerMiddleware {
	return middleware.Retry{
		MaxRetries:          cfg.MaxRetries,
		InitialInterval:     cfg.InitialInterval,
		MaxInterval:         cfg.MaxInterval,
		Multiplier:          cfg.Multiplier,
		RandomizationFactor: 0.5,
		Logger:              watermill.NewStdLogger(false, false),
		OnRetryHook: func(retryNum int, delay time.Duration) {
			logger.Infow("retrying message",
				"retry_number", retryNum,
				"max_retries", cfg.MaxRetries,
				"delay", delay,
			)
		},
	}.Middleware
}

// WebhookRetryConfig derives the delivery backoff from the webhook section
func WebhookRetryConfig(cfg config.Webhook) config.RetryConfig {
	return config.RetryConfig{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.InitialInterval * 10,
		Multiplier:      2,
	}
}
