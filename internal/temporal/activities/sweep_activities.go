package activities

import (
	"context"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/sweep"
	"github.com/flexprice/billingcore/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
)

// Activity names as registered on the worker
const (
	ActivityRunSweep   = "RunSweep"
	ActivityListSweeps = "ListSweeps"
)

type SweepActivities struct {
	sweeper *sweep.Sweeper
}

func NewSweepActivities(sweeper *sweep.Sweeper) *SweepActivities {
	return &SweepActivities{sweeper: sweeper}
}

func (a *SweepActivities) ListSweeps(ctx context.Context) ([]string, error) {
	return a.sweeper.Names(), nil
}

// RunSweep runs one sweep across all tenants. An unknown sweep is not retried.
func (a *SweepActivities) RunSweep(ctx context.Context, input models.RunSweepInput) (*sweep.Result, error) {
	result, err := a.sweeper.Run(ctx, input.Sweep, input.Now)
	if err != nil && !ierr.IsRetryable(err) {
		return result, temporal.NewNonRetryableApplicationError(err.Error(), "SweepError", err)
	}
	return result, err
}
