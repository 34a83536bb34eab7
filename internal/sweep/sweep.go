// Package sweep runs the periodic billing sweeps across every active tenant.
// Sweeps only find due work and enqueue it; the job consumers do the rest.
package sweep

import (
	"context"
	"sort"
	"time"

	"github.com/flexprice/billingcore/internal/domain/tenant"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// Sweep names
const (
	Lifecycle    = "lifecycle"
	GracePeriod  = "grace_period"
	PaymentRetry = "payment_retry"
	WalletExpiry = "wallet_expiry"
)

// Func runs one sweep for the tenant in ctx and reports how many items it handled
type Func func(ctx context.Context, now time.Time) (int, error)

// Result of a sweep over all tenants
type Result struct {
	Sweep         string   `json:"sweep"`
	Tenants       int      `json:"tenants"`
	Processed     int      `json:"processed"`
	FailedTenants []string `json:"failed_tenants,omitempty"`
}

type Sweeper struct {
	tenants     tenant.Repository
	sweeps      map[string]Func
	concurrency int
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

// Sweeps binds sweep names to the services that implement them
type Sweeps struct {
	Lifecycle    Func
	GracePeriod  Func
	PaymentRetry Func
	WalletExpiry Func
}

func NewSweeper(tenants tenant.Repository, sweeps Sweeps, concurrency int, logger *logger.Logger, metrics *metrics.Metrics) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{
		tenants: tenants,
		sweeps: map[string]Func{
			Lifecycle:    sweeps.Lifecycle,
			GracePeriod:  sweeps.GracePeriod,
			PaymentRetry: sweeps.PaymentRetry,
			WalletExpiry: sweeps.WalletExpiry,
		},
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// Names lists the registered sweeps in a stable order
func (s *Sweeper) Names() []string {
	names := make([]string, 0, len(s.sweeps))
	for name, fn := range s.sweeps {
		if fn != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Run executes the named sweep for every active tenant. A failing tenant does not
// stop the others; the returned error joins every tenant failure.
func (s *Sweeper) Run(ctx context.Context, name string, now time.Time) (*Result, error) {
	fn := s.sweeps[name]
	if fn == nil {
		return nil, ierr.NewError("unknown sweep").
			WithHintf("Sweep %q does not exist", name).
			WithReportableDetails(map[string]any{"sweep": name}).
			Mark(ierr.ErrNotFound)
	}

	start := time.Now()
	defer func() { s.metrics.SweepObserved(name, time.Since(start).Seconds()) }()

	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		tenantID  string
		processed int
		err       error
	}

	p := pool.NewWithResults[outcome]().WithContext(ctx).WithMaxGoroutines(s.concurrency)
	for _, t := range tenants {
		tenantID := t.ID
		p.Go(func(ctx context.Context) (outcome, error) {
			n, err := fn(types.WithTenant(ctx, tenantID), now)
			return outcome{tenantID: tenantID, processed: n, err: err}, nil
		})
	}
	outcomes, _ := p.Wait()

	result := &Result{Sweep: name, Tenants: len(tenants)}
	var errs []error
	for _, o := range outcomes {
		result.Processed += o.processed
		if o.err != nil {
			s.logger.Errorw("sweep failed for tenant",
				"sweep", name,
				"tenant_id", o.tenantID,
				"error", o.err,
			)
			result.FailedTenants = append(result.FailedTenants, o.tenantID)
			errs = append(errs, o.err)
		}
	}
	sort.Strings(result.FailedTenants)

	s.logger.Infow("sweep completed",
		"sweep", name,
		"tenants", result.Tenants,
		"processed", result.Processed,
		"failed_tenants", len(result.FailedTenants),
	)

	if len(errs) > 0 {
		return result, ierr.WithError(ierr.Join(errs...)).
			WithHintf("Sweep %s failed for %d tenant(s)", name, len(errs)).
			Mark(ierr.ErrSystem)
	}
	return result, nil
}
