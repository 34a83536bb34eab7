package workflows

import (
	"github.com/flexprice/billingcore/internal/sweep"
	"github.com/flexprice/billingcore/internal/temporal/activities"
	"github.com/flexprice/billingcore/internal/temporal/models"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const WorkflowSweep = "SweepWorkflow"

// SweepWorkflow runs the billing sweeps one after the other at the workflow's
// clock. A sweep that exhausts its retries is recorded and the rest still run.
func SweepWorkflow(ctx workflow.Context, input models.SweepWorkflowInput) (*models.SweepWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: models.DefaultActivityTimeout,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    models.DefaultInitialInterval,
			BackoffCoefficient: models.DefaultBackoffCoefficient,
			MaximumInterval:    models.DefaultMaximumInterval,
			MaximumAttempts:    models.DefaultMaximumAttempts,
		},
	})

	names := input.Sweeps
	if len(names) == 0 {
		if err := workflow.ExecuteActivity(ctx, activities.ActivityListSweeps).Get(ctx, &names); err != nil {
			return nil, err
		}
	}

	now := workflow.Now(ctx).UTC()
	result := &models.SweepWorkflowResult{}
	for _, name := range names {
		var res sweep.Result
		err := workflow.ExecuteActivity(ctx, activities.ActivityRunSweep, models.RunSweepInput{
			Sweep: name,
			Now:   now,
		}).Get(ctx, &res)
		if err != nil {
			logger.Error("sweep failed", "sweep", name, "error", err)
			result.Failed = append(result.Failed, name)
			continue
		}
		result.Results = append(result.Results, &res)
	}

	logger.Info("sweep workflow completed",
		"sweeps", len(names),
		"failed", len(result.Failed))
	return result, nil
}
