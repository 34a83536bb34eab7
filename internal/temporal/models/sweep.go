package models

import (
	"time"

	"github.com/flexprice/billingcore/internal/sweep"
)

const (
	// SweepWorkflowID is fixed so only one cron sweep workflow runs per namespace
	SweepWorkflowID = "billingcore-sweeps"

	DefaultActivityTimeout    = 10 * time.Minute
	DefaultInitialInterval    = time.Second
	DefaultMaximumInterval    = time.Minute
	DefaultBackoffCoefficient = 2.0
	DefaultMaximumAttempts    = 3
)

// SweepWorkflowInput names the sweeps to run, in order. Empty runs all of them.
type SweepWorkflowInput struct {
	Sweeps []string `json:"sweeps"`
}

type SweepWorkflowResult struct {
	Results []*sweep.Result `json:"results"`
	Failed  []string        `json:"failed,omitempty"`
}

// RunSweepInput is the activity input of one sweep
type RunSweepInput struct {
	Sweep string    `json:"sweep"`
	Now   time.Time `json:"now"`
}
