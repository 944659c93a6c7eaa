// Package report writes run results to disk.
//
// Layout of an output directory:
//   - report.json: the whole run (flows, commands, errors, teardown)
//   - junit.xml: one testsuite per run, one testcase per flow
//   - report.html: human-readable view of report.json
//   - assets/: screenshots referenced from report.json
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
	StatusWarned  Status = "warned"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s != StatusPending && s != StatusRunning
}

// IsSuccess returns true for passed and warned.
func (s Status) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ============================================================================
// REPORT (report.json)
// ============================================================================

// Report is the root of report.json.
type Report struct {
	Version   string     `json:"version"`
	RunID     string     `json:"runId"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	Duration  int64      `json:"duration"` // ms
	Runner    RunnerInfo `json:"runner"`
	Summary   Summary    `json:"summary"`
	Flows     []Flow     `json:"flows"`
}

// RunnerInfo identifies the tool that produced the report.
type RunnerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Driver  string `json:"driver"` // safari, mock
	Server  string `json:"server,omitempty"`
}

// Summary contains aggregate flow counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Flow is one executed scenario.
type Flow struct {
	ID           string         `json:"id"` // flow-000
	Name         string         `json:"name"`
	File         string         `json:"file"`
	Tags         []string       `json:"tags,omitempty"`
	Status       Status         `json:"status"`
	StartTime    time.Time      `json:"startTime"`
	Duration     int64          `json:"duration"` // ms
	Platform     *Platform      `json:"platform,omitempty"`
	SessionError string         `json:"sessionError,omitempty"`
	Error        string         `json:"error,omitempty"`
	Teardown     *Teardown      `json:"teardown,omitempty"`
	Summary      CommandSummary `json:"commandSummary"`
	Commands     []Command      `json:"commands"`
}

// Platform describes the browser session.
type Platform struct {
	Platform  string `json:"platform"`
	OSVersion string `json:"osVersion,omitempty"`
	Device    string `json:"device,omitempty"`
	Browser   string `json:"browser,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Teardown records how the session was ended.
type Teardown struct {
	Duration int64  `json:"duration"` // ms
	Error    string `json:"error,omitempty"`
}

// CommandSummary contains step counts for a flow.
type CommandSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Warned  int `json:"warned"`
}

// Command is one executed step.
type Command struct {
	Index       int         `json:"index"`
	Type        string      `json:"type"`
	Label       string      `json:"label,omitempty"`
	Description string      `json:"description"`
	Optional    bool        `json:"optional,omitempty"`
	ExecutedBy  string      `json:"executedBy,omitempty"`
	Status      Status      `json:"status"`
	StartTime   *time.Time  `json:"startTime,omitempty"`
	Duration    int64       `json:"duration"` // ms
	Message     string      `json:"message,omitempty"`
	Element     *Element    `json:"element,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Error       *Error      `json:"error,omitempty"`
	Screenshots []string    `json:"screenshots,omitempty"` // paths relative to the report dir
	PageSource  string      `json:"pageSource,omitempty"`  // saved document, relative to the report dir
}

// Element describes the element a command interacted with.
type Element struct {
	ID      string `json:"id,omitempty"`
	Alias   string `json:"alias,omitempty"`
	Locator string `json:"locator,omitempty"`
	Text    string `json:"text,omitempty"`
	Bounds  Bounds `json:"bounds"`
	Visible bool   `json:"visible"`
}

// Bounds represents element position and size.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Error describes why a command did not pass.
type Error struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}
