// Package scheduler triggers the billing sweeps in-process on cron specs. A
// deployment that runs sweeps on Temporal disables it.
package scheduler

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/sweep"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

type Scheduler struct {
	cron    *cron.Cron
	sweeper *sweep.Sweeper
	logger  *logger.Logger
	now     func() time.Time
}

// New registers one cron entry per configured sweep. Overlapping runs of the same
// sweep are skipped rather than queued.
func New(cfg *config.Configuration, sweeper *sweep.Sweeper, logger *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		sweeper: sweeper,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}

	specs := map[string]string{
		sweep.Lifecycle:    cfg.Scheduler.LifecycleSpec,
		sweep.GracePeriod:  cfg.Scheduler.GracePeriodSpec,
		sweep.PaymentRetry: cfg.Scheduler.PaymentRetrySpec,
		sweep.WalletExpiry: cfg.Scheduler.WalletExpirySpec,
	}
	for _, name := range sweeper.Names() {
		spec := specs[name]
		if spec == "" {
			continue
		}
		name := name
		if _, err := s.cron.AddFunc(spec, func() { s.Trigger(context.Background(), name) }); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Invalid cron spec %q for sweep %s", spec, name).
				Mark(ierr.ErrConfiguration)
		}
	}
	return s, nil
}

// Trigger runs one sweep now. Failures are logged; the next tick retries.
func (s *Scheduler) Trigger(ctx context.Context, name string) {
	result, err := s.sweeper.Run(ctx, name, s.now())
	if err != nil {
		s.logger.Errorw("scheduled sweep failed", "sweep", name, "error", err)
		return
	}
	s.logger.Debugw("scheduled sweep finished",
		"sweep", name,
		"processed", result.Processed,
	)
}

// Entries is the number of registered sweeps
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.logger.Infow("starting sweep scheduler", "entries", s.Entries())
	s.cron.Start()
}

// Stop waits for running sweeps or for ctx, whichever comes first
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("sweep scheduler stopped")
	case <-ctx.Done():
		s.logger.Error("timeout while stopping sweep scheduler")
	}
}

// RegisterWithLifecycle ties the scheduler to the fx lifecycle
func (s *Scheduler) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop(ctx)
			return nil
		},
	})
}
