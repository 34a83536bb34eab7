package temporal

import (
	"context"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/sweep"
	"github.com/flexprice/billingcore/internal/temporal/activities"
	"github.com/flexprice/billingcore/internal/temporal/workflows"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/fx"
)

// Worker manages the Temporal worker instance
type Worker struct {
	worker worker.Worker
	log    *logger.Logger
}

func NewWorker(client *TemporalClient, cfg *config.Configuration, sweeper *sweep.Sweeper, log *logger.Logger) *Worker {
	w := worker.New(client.Client, cfg.Temporal.TaskQueue, worker.Options{})
	RegisterWorkflowsAndActivities(w, sweeper)
	return &Worker{worker: w, log: log}
}

// Registry is the part of a worker that workflows and activities register on
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// RegisterWorkflowsAndActivities registers the sweep workflow and its activities
func RegisterWorkflowsAndActivities(r Registry, sweeper *sweep.Sweeper) {
	r.RegisterWorkflowWithOptions(workflows.SweepWorkflow, workflow.RegisterOptions{Name: workflows.WorkflowSweep})

	sweepActivities := activities.NewSweepActivities(sweeper)
	r.RegisterActivityWithOptions(sweepActivities.RunSweep, activity.RegisterOptions{Name: activities.ActivityRunSweep})
	r.RegisterActivityWithOptions(sweepActivities.ListSweeps, activity.RegisterOptions{Name: activities.ActivityListSweeps})
}

func (w *Worker) Start() error {
	w.log.Info("starting temporal worker")
	return w.worker.Start()
}

func (w *Worker) Stop() {
	w.log.Info("stopping temporal worker")
	if w.worker != nil {
		w.worker.Stop()
	}
}

// RegisterWithLifecycle registers the worker with the fx lifecycle
func (w *Worker) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				w.Stop()
				close(done)
			}()

			select {
			case <-done:
				w.log.Info("temporal worker stopped")
			case <-ctx.Done():
				w.log.Error("timeout while stopping temporal worker")
			}
			return nil
		},
	})
}
