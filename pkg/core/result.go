package core

import (
	"time"

	"github.com/devicelab-dev/safari-runner/pkg/flow"
)

// StepResult captures the complete outcome of executing a single step
type StepResult struct {
	// Identity
	Step        flow.Step `json:"-"`                  // Reference to the step definition
	Index       int       `json:"index"`              // 0-based position in flow
	Command     string    `json:"command"`            // Step type: openUrl, scrollTo, etc.
	Description string    `json:"description"`        // Step.Describe() after variable expansion
	Label       string    `json:"label,omitempty"`    // Optional user label
	Optional    bool      `json:"optional,omitempty"` // Failure only warns

	// Execution context
	ExecutedBy ExecutedBy `json:"executedBy"` // driver or runner

	// Status
	Status    StepStatus    `json:"status"`
	Category  ErrorCategory `json:"errorCategory,omitempty"`
	ErrorCode string        `json:"errorCode,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string       `json:"message,omitempty"` // Human-readable explanation
	Element *ElementInfo `json:"element,omitempty"` // Element interacted with
	Data    interface{}  `json:"data,omitempty"`    // Command-specific data

	// Error Details
	Error string `json:"error,omitempty"` // Technical error message

	// Debug Artifacts
	Attachments []Attachment `json:"attachments,omitempty"` // Screenshots
}

// Name returns the label if set, otherwise the description.
func (r *StepResult) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Description
}

// TeardownResult records how the session was ended.
type TeardownResult struct {
	Attempted bool          `json:"attempted"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// FlowResult captures the complete outcome of executing a flow
type FlowResult struct {
	// Identity
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags,omitempty"`

	// Platform info (captured once per flow)
	PlatformInfo *PlatformInfo `json:"platformInfo,omitempty"`

	// Status (aggregated from steps)
	Status StepStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps    []StepResult    `json:"steps"`
	Teardown *TeardownResult `json:"teardown,omitempty"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`

	// Error info (if flow failed)
	SessionError string `json:"sessionError,omitempty"` // Session could not be created
	Error        string `json:"error,omitempty"`
	Message      string `json:"message,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (f *FlowResult) ComputeSummary() {
	f.TotalSteps = len(f.Steps)
	f.PassedSteps = 0
	f.FailedSteps = 0
	f.SkippedSteps = 0
	f.WarnedSteps = 0

	for _, step := range f.Steps {
		switch step.Status {
		case StatusPassed:
			f.PassedSteps++
		case StatusFailed, StatusErrored:
			f.FailedSteps++
		case StatusSkipped:
			f.SkippedSteps++
		case StatusWarned:
			f.WarnedSteps++
		}
	}
}

// FirstFailure returns the first failed or errored step, or nil.
func (f *FlowResult) FirstFailure() *StepResult {
	for i := range f.Steps {
		if f.Steps[i].Status == StatusFailed || f.Steps[i].Status == StatusErrored {
			return &f.Steps[i]
		}
	}
	return nil
}

// AggregateStatus determines the flow status from step results
// Rules:
// - Session not created → StatusErrored (all steps skipped)
// - First failing step errored → StatusErrored
// - First failing step failed → StatusFailed
// - All passed with optional warned → StatusWarned (still a success)
// - All passed → StatusPassed
// Teardown never changes the outcome.
func (f *FlowResult) AggregateStatus() StepStatus {
	if f.SessionError != "" {
		return StatusErrored
	}
	if first := f.FirstFailure(); first != nil {
		return first.Status
	}
	for _, step := range f.Steps {
		if step.Status == StatusWarned {
			return StatusWarned
		}
	}
	return StatusPassed
}

// SuiteResult captures the complete outcome of executing multiple flows
type SuiteResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"` // Unique execution ID (UUID)

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Flows []FlowResult `json:"flows"`

	// Summary
	TotalFlows   int `json:"totalFlows"`
	PassedFlows  int `json:"passedFlows"`
	FailedFlows  int `json:"failedFlows"`
	SkippedFlows int `json:"skippedFlows"`
}

// ComputeSummary calculates flow counts from the Flows slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalFlows = len(s.Flows)
	s.PassedFlows = 0
	s.FailedFlows = 0
	s.SkippedFlows = 0

	for _, flow := range s.Flows {
		switch flow.Status {
		case StatusPassed, StatusWarned:
			s.PassedFlows++
		case StatusFailed, StatusErrored:
			s.FailedFlows++
		case StatusSkipped:
			s.SkippedFlows++
		}
	}
}

// Success returns true if all flows passed (including warned)
func (s *SuiteResult) Success() bool {
	for _, flow := range s.Flows {
		if !flow.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Flows) > 0
}
