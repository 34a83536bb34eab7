package temporal

import (
	"context"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/temporal/models"
	"github.com/flexprice/billingcore/internal/temporal/workflows"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Service starts the sweep workflows
type Service struct {
	client *TemporalClient
	log    *logger.Logger
	cfg    *config.TemporalConfig
}

func NewService(client *TemporalClient, cfg *config.Configuration, log *logger.Logger) *Service {
	return &Service{client: client, log: log, cfg: &cfg.Temporal}
}

// EnsureSweepSchedule starts the cron sweep workflow unless it is already running
func (s *Service) EnsureSweepSchedule(ctx context.Context) error {
	run, err := s.client.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    models.SweepWorkflowID,
		TaskQueue:             s.cfg.TaskQueue,
		CronSchedule:          s.cfg.SweepCronSpec,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.WorkflowSweep, models.SweepWorkflowInput{})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if ierr.As(err, &started) {
			s.log.Debugw("sweep workflow already scheduled", "workflow_id", models.SweepWorkflowID)
			return nil
		}
		return ierr.WithError(err).
			WithHint("Failed to schedule sweep workflow").
			Mark(ierr.ErrSystem)
	}

	s.log.Infow("scheduled sweep workflow",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"cron", s.cfg.SweepCronSpec,
	)
	return nil
}
