// Package executor orchestrates scenario execution: it opens one browser
// session per flow, runs the steps strictly in order and always ends the
// session.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/logger"
)

// DriverFactory opens a browser session. It is called once per flow; an
// error means no step of that flow can run.
type DriverFactory func(ctx context.Context) (core.Driver, error)

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	OutputDir    string            // Report output directory; screenshots go to <OutputDir>/assets
	Env          map[string]string // Variables that override each flow's env block
	WaitTimeout  time.Duration     // Default waitUntil timeout
	PollInterval time.Duration     // Default waitUntil poll interval
	Artifacts    core.ArtifactConfig
	SystemEnv    bool // Import process environment variables into the script engine

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(idx int, result *core.StepResult)
	OnFlowEnd      func(result *core.FlowResult)
}

// Runner orchestrates flow execution.
type Runner struct {
	config    RunnerConfig
	newDriver DriverFactory
}

// New creates a new Runner.
func New(factory DriverFactory, cfg RunnerConfig) *Runner {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Runner{
		config:    cfg,
		newDriver: factory,
	}
}

// Run executes flows one after another, each in its own session.
func (r *Runner) Run(ctx context.Context, flows []*flow.Flow) *core.SuiteResult {
	suite := &core.SuiteResult{
		Name:      "safari-runner",
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}

	logger.WithFields(map[string]interface{}{
		"runId": suite.RunID,
		"flows": len(flows),
	}).Info("Run started")

	for i, f := range flows {
		if ctx.Err() != nil {
			suite.Flows = append(suite.Flows, *cancelledFlow(f))
			continue
		}
		suite.Flows = append(suite.Flows, *r.RunFlow(ctx, f, i, len(flows)))
	}

	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()

	logger.Info("Run finished: %d passed, %d failed, %d skipped in %s",
		suite.PassedFlows, suite.FailedFlows, suite.SkippedFlows, suite.Duration)
	return suite
}

// RunFlow executes a single flow in a fresh session.
func (r *Runner) RunFlow(ctx context.Context, f *flow.Flow, flowIdx, totalFlows int) *core.FlowResult {
	fr := &FlowRunner{
		ctx:        ctx,
		flow:       f,
		config:     r.config,
		flowIdx:    flowIdx,
		totalFlows: totalFlows,
	}
	return fr.Run(r.newDriver)
}

// FlowName returns the display name of a flow.
func FlowName(f *flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	return f.SourcePath
}

// cancelledFlow records a flow that never started because the run was cancelled.
func cancelledFlow(f *flow.Flow) *core.FlowResult {
	result := &core.FlowResult{
		Name:      FlowName(f),
		FilePath:  f.SourcePath,
		Tags:      f.Config.Tags,
		StartTime: time.Now(),
		Error:     "run cancelled",
	}
	for i, step := range f.Steps {
		result.Steps = append(result.Steps, skippedStep(i, step, "run cancelled"))
	}
	result.ComputeSummary()
	result.Status = core.StatusSkipped
	return result
}
