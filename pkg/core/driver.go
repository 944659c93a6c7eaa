package core

import (
	"time"

	"github.com/devicelab-dev/safari-runner/pkg/flow"
)

//go:generate mockgen -destination=mocks/driver.go -package=mocks . Driver

// Driver defines the interface for executing commands against a browser session.
// Implementations: Safari over WebDriver, mock (dry run).
// The Runner handles flow logic and waits; Driver just executes individual commands.
type Driver interface {
	// Execute runs a single step and returns the result
	Execute(step flow.Step) *CommandResult

	// Screenshot captures the current viewport as PNG
	Screenshot() ([]byte, error)

	// GetState returns the current page state
	GetState() *StateSnapshot

	// ElementVisible reports whether sel matches a displayed element right now
	ElementVisible(sel flow.Selector) (bool, error)

	// GetPlatformInfo returns device/browser information
	GetPlatformInfo() *PlatformInfo

	// Close ends the session. Safe to call more than once.
	Close() error
}

// PageSourceProvider is implemented by drivers that can return the current
// document. The runner saves it next to the failure screenshot.
type PageSourceProvider interface {
	PageSource() (string, error)
}

// CommandResult represents the outcome of executing a single command
type CommandResult struct {
	// Core outcome
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// Element information (for findElement, scrollTo, click)
	Element *ElementInfo `json:"element,omitempty"`

	// Generic data for command-specific results
	// Examples: actual title, screenshot path, gesture
	Data interface{} `json:"data,omitempty"`
}

// Success returns a passing CommandResult.
func Success(msg string) *CommandResult {
	return &CommandResult{Success: true, Message: msg}
}

// Failure returns a failed CommandResult carrying err.
func Failure(err error, msg string) *CommandResult {
	return &CommandResult{Success: false, Error: err, Message: msg}
}

// ElementInfo represents information about a located page element
type ElementInfo struct {
	ID      string `json:"id,omitempty"`
	Alias   string `json:"alias,omitempty"`
	Locator string `json:"locator,omitempty"`
	Text    string `json:"text,omitempty"`
	Bounds  Bounds `json:"bounds"`
	Visible bool   `json:"visible"`
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// StateSnapshot captures the current page state
type StateSnapshot struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	ReadyState string `json:"readyState"` // loading, interactive, complete
}

// Vars exposes the snapshot to JavaScript conditions.
func (s *StateSnapshot) Vars() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"title": "", "url": "", "readyState": ""}
	}
	return map[string]interface{}{
		"title":      s.Title,
		"url":        s.URL,
		"readyState": s.ReadyState,
	}
}

// PlatformInfo contains device and browser details
type PlatformInfo struct {
	Platform     string `json:"platform"`               // iOS
	OSVersion    string `json:"osVersion"`              // e.g., "12.1"
	DeviceName   string `json:"deviceName"`             // e.g., "iPhone XS"
	Browser      string `json:"browser"`                // safari
	SessionID    string `json:"sessionId,omitempty"`    // WebDriver session
	ScreenWidth  int    `json:"screenWidth,omitempty"`  // Viewport width in points
	ScreenHeight int    `json:"screenHeight,omitempty"` // Viewport height in points
}

// ExecutedBy indicates what component executed a step
type ExecutedBy string

// ExecutedBy values
const (
	ExecutedByDriver ExecutedBy = "driver" // Executed by the Driver
	ExecutedByRunner ExecutedBy = "runner" // Executed by the Runner (waits, JS assertions)
)
