package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/logger"
	"github.com/devicelab-dev/safari-runner/pkg/report"
)

// FlowRunner executes a single flow against one session.
type FlowRunner struct {
	ctx        context.Context
	flow       *flow.Flow
	driver     core.Driver
	config     RunnerConfig
	script     *ScriptEngine
	flowIdx    int // Current flow index (0-based)
	totalFlows int // Total number of flows
	stepIdx    int // Step being executed (0-based)
}

// Run opens the session, executes the steps and ends the session. The session
// is closed exactly once on every path out of the step loop.
func (fr *FlowRunner) Run(newDriver DriverFactory) *core.FlowResult {
	result := &core.FlowResult{
		Name:      FlowName(fr.flow),
		FilePath:  fr.flow.SourcePath,
		Tags:      fr.flow.Config.Tags,
		StartTime: time.Now(),
	}

	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, result.Name, filepath.Base(fr.flow.SourcePath))
	}
	logger.Info("Flow %q started (%d steps)", result.Name, len(fr.flow.Steps))

	driver, err := newDriver(fr.ctx)
	if err != nil {
		fr.failSession(result, err)
	} else {
		fr.runSession(driver, result)
	}

	result.Duration = time.Since(result.StartTime)
	result.ComputeSummary()
	result.Status = result.AggregateStatus()
	if result.Error == "" {
		if first := result.FirstFailure(); first != nil {
			result.Error = first.Error
			result.Message = first.Message
		}
	} else if result.Status.IsSuccess() {
		// Cancelled between steps with nothing failed
		result.Status = core.StatusSkipped
	}

	logger.Info("Flow %q finished: %s in %s", result.Name, result.Status, result.Duration)
	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(result)
	}
	return result
}

// failSession records a session that could not be created: no step runs.
func (fr *FlowRunner) failSession(result *core.FlowResult, err error) {
	execErr := core.Classify(err)
	if execErr.Code != core.ErrSessionNotCreated.Code {
		execErr = core.ErrSessionNotCreated.WithCause(err)
	}
	logger.Error("Session not created: %v", execErr)

	result.SessionError = execErr.Error()
	result.Error = execErr.Error()
	result.Message = execErr.Message
	for i, step := range fr.flow.Steps {
		result.Steps = append(result.Steps, skippedStep(i, step, "no session"))
	}
}

// runSession executes all steps with driver and tears it down.
func (fr *FlowRunner) runSession(driver core.Driver, result *core.FlowResult) {
	fr.driver = driver
	defer fr.teardown(result)

	result.PlatformInfo = driver.GetPlatformInfo()

	fr.script = NewScriptEngine()
	defer fr.script.Close()

	if fr.config.SystemEnv {
		fr.script.ImportSystemEnv()
	}
	fr.script.SetVariables(fr.flow.Config.Env)
	fr.script.SetVariables(fr.config.Env)

	for i, step := range fr.flow.Steps {
		if fr.ctx.Err() != nil {
			fr.skipRemaining(result, i, "execution cancelled")
			result.Error = "execution cancelled"
			return
		}

		sr := fr.executeStep(i, step)
		result.Steps = append(result.Steps, *sr)

		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(i, sr)
		}

		if sr.Status == core.StatusFailed || sr.Status == core.StatusErrored {
			fr.skipRemaining(result, i+1, fmt.Sprintf("step %d failed", i+1))
			return
		}
	}
}

// teardown ends the session. Its error is recorded but never changes the outcome.
func (fr *FlowRunner) teardown(result *core.FlowResult) {
	start := time.Now()
	err := fr.driver.Close()
	td := &core.TeardownResult{
		Attempted: true,
		Duration:  time.Since(start),
	}
	if err != nil {
		td.Error = err.Error()
		logger.Warn("Teardown failed: %v", err)
	} else {
		logger.Debug("Session closed")
	}
	result.Teardown = td
}

// skipRemaining records steps from index from onwards as skipped.
func (fr *FlowRunner) skipRemaining(result *core.FlowResult, from int, reason string) {
	for j := from; j < len(fr.flow.Steps); j++ {
		result.Steps = append(result.Steps, skippedStep(j, fr.flow.Steps[j], reason))
	}
}

func skippedStep(idx int, step flow.Step, reason string) core.StepResult {
	return core.StepResult{
		Step:        step,
		Index:       idx,
		Command:     string(step.Type()),
		Description: step.Describe(),
		Label:       step.Label(),
		Optional:    step.IsOptional(),
		Status:      core.StatusSkipped,
		Message:     reason,
	}
}

// executeStep expands, dispatches and classifies a single step.
func (fr *FlowRunner) executeStep(idx int, step flow.Step) *core.StepResult {
	fr.stepIdx = idx
	sr := &core.StepResult{
		Step:      step,
		Index:     idx,
		Command:   string(step.Type()),
		Label:     step.Label(),
		Optional:  step.IsOptional(),
		StartTime: time.Now(),
		Status:    core.StatusRunning,
	}

	var result *core.CommandResult
	expanded, err := fr.script.ExpandStep(step)
	sr.Description = expanded.Describe()
	if err != nil {
		sr.ExecutedBy = core.ExecutedByRunner
		result = core.Failure(err, err.Error())
	} else {
		logger.Debug("Step %d: %s", idx+1, sr.Description)
		result, sr.ExecutedBy = fr.dispatch(expanded)
	}

	sr.Duration = time.Since(sr.StartTime)
	fr.applyResult(sr, step, result)
	fr.captureArtifacts(sr)

	entry := logger.WithFields(map[string]interface{}{
		"step":     idx + 1,
		"command":  sr.Command,
		"status":   sr.Status.String(),
		"duration": sr.Duration.String(),
	})
	if sr.Error != "" {
		entry.Warn(sr.Error)
	} else {
		entry.Info(sr.Name())
	}
	return sr
}

// dispatch routes a step to the runner or the driver. A panic is recovered
// into a failed result so teardown still runs.
func (fr *FlowRunner) dispatch(step flow.Step) (result *core.CommandResult, by core.ExecutedBy) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Step %q panicked: %v", step.Describe(), r)
			err := core.ErrStepPanicked.WithMessage(fmt.Sprintf("step panicked: %v", r))
			result = core.Failure(err, err.Message)
		}
	}()

	switch s := step.(type) {
	case *flow.WaitUntilStep:
		result, by = fr.executeWait(s), core.ExecutedByRunner
	case *flow.AssertTrueStep:
		result, by = fr.script.ExecuteAssertTrue(s, fr.driver.GetState()), core.ExecutedByRunner
	case *flow.TakeScreenshotStep:
		result, by = fr.saveScreenshot(s, fr.driver.Execute(step)), core.ExecutedByDriver
	default:
		result, by = fr.driver.Execute(step), core.ExecutedByDriver
	}

	if result == nil {
		result = core.Failure(core.ErrNoResult, core.ErrNoResult.Message)
	}
	return result, by
}

// applyResult maps a command result onto the step status:
// optional → warned, assertion → failed, anything else → errored.
func (fr *FlowRunner) applyResult(sr *core.StepResult, step flow.Step, result *core.CommandResult) {
	sr.Message = result.Message
	sr.Element = result.Element
	if _, isPNG := result.Data.([]byte); !isPNG {
		sr.Data = result.Data
	}

	if result.Success {
		sr.Status = core.StatusPassed
		return
	}

	err := result.Error
	if err == nil {
		err = core.ErrConditionNotMet.WithMessage(result.Message)
	}
	execErr := core.Classify(err)
	sr.Category = execErr.Category
	sr.ErrorCode = execErr.Code
	sr.Error = execErr.Error()

	switch {
	case step.IsOptional():
		sr.Status = core.StatusWarned
	case execErr.Category.IsFailure():
		sr.Status = core.StatusFailed
	default:
		sr.Status = core.StatusErrored
	}
}

// saveScreenshot writes the PNG of a takeScreenshot step into the assets dir.
func (fr *FlowRunner) saveScreenshot(step *flow.TakeScreenshotStep, result *core.CommandResult) *core.CommandResult {
	if result == nil || !result.Success {
		return result
	}
	data, ok := result.Data.([]byte)
	if !ok {
		return result
	}

	name := fr.assetName("", ".png")
	if step.Path != "" {
		name = filepath.Base(step.Path)
		if !strings.HasSuffix(strings.ToLower(name), ".png") {
			name += ".png"
		}
	}

	path, err := fr.writeAsset(name, data)
	if err != nil {
		return core.Failure(core.NewExecutionError(core.ErrCategoryConfig, "asset_write_failed",
			"cannot save screenshot").WithCause(err), fmt.Sprintf("Cannot save screenshot: %v", err))
	}
	result.Data = path
	result.Message = "Screenshot saved to " + path
	return result
}

// captureArtifacts takes a screenshot after a step when the artifact policy asks
// for it. Steps that did not pass also get the page source when the driver has one.
func (fr *FlowRunner) captureArtifacts(sr *core.StepResult) {
	if !fr.config.Artifacts.ShouldCapture(sr.Status) {
		return
	}
	if sr.Category == core.ErrCategorySession || sr.Category == core.ErrCategoryConnection {
		return
	}

	if data, err := fr.driver.Screenshot(); err != nil {
		logger.Debug("Failure screenshot not captured: %v", err)
	} else if path, err := fr.writeAsset(fr.assetName(sr.Status.String(), ".png"), data); err != nil {
		logger.Warn("Failure screenshot not saved: %v", err)
	} else {
		sr.Attachments = append(sr.Attachments, core.NewScreenshotAttachment(path, data))
	}

	if sr.Status == core.StatusPassed {
		return
	}
	sp, ok := fr.driver.(core.PageSourceProvider)
	if !ok {
		return
	}
	source, err := sp.PageSource()
	if err != nil {
		logger.Debug("Page source not captured: %v", err)
		return
	}
	path, err := fr.writeAsset(fr.assetName(sr.Status.String(), ".html"), []byte(source))
	if err != nil {
		logger.Warn("Page source not saved: %v", err)
		return
	}
	sr.Attachments = append(sr.Attachments, core.NewPageSourceAttachment(path, source))
}

// assetName is unique per flow and step: flow-000-step-03[-suffix]<ext>
func (fr *FlowRunner) assetName(suffix, ext string) string {
	name := fmt.Sprintf("flow-%03d-step-%02d", fr.flowIdx, fr.stepIdx+1)
	if suffix != "" {
		name += "-" + suffix
	}
	return name + ext
}

// writeAsset saves data under the output dir, or keeps it in memory when
// there is no output dir.
func (fr *FlowRunner) writeAsset(name string, data []byte) (string, error) {
	if fr.config.OutputDir == "" {
		return name, nil
	}
	return report.WriteAsset(fr.config.OutputDir, name, data)
}
