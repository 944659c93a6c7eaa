// Package mock provides a dry-run driver that needs no device or server.
package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
)

// Driver is a mock implementation of core.Driver. Every command succeeds unless
// configured to fail, pages are always "complete" and every element is visible.
type Driver struct {
	// Configuration
	Config Config

	mu       sync.Mutex
	executed []string
	url      string
	title    string
	closes   int
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnStep makes the Nth executed command fail (1-indexed). 0 = never fail.
	FailOnStep int
	// StepDelay adds artificial delay per step
	StepDelay time.Duration
	// Title is reported by GetState; assertTitle steps pass regardless.
	Title string
	// Hidden selectors (by Describe()) are reported as not visible.
	Hidden []string
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	return &Driver{Config: cfg, title: cfg.Title}
}

// Execute simulates executing a step.
func (d *Driver) Execute(step flow.Step) *core.CommandResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.executed = append(d.executed, step.Describe())
	n := len(d.executed)
	start := time.Now()

	if d.Config.StepDelay > 0 {
		time.Sleep(d.Config.StepDelay)
	}

	if d.Config.FailOnStep > 0 && n == d.Config.FailOnStep {
		return &core.CommandResult{
			Success:  false,
			Duration: time.Since(start),
			Error:    core.ErrConditionNotMet.WithMessage(fmt.Sprintf("mock failure on step %d", n)),
			Message:  fmt.Sprintf("Simulated failure on step %d (%s)", n, step.Type()),
		}
	}

	result := &core.CommandResult{
		Success:  true,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("Mock executed: %s", step.Describe()),
	}

	switch s := step.(type) {
	case *flow.OpenURLStep:
		d.url = s.URL
	case *flow.AssertTitleStep:
		if s.Equals != "" {
			d.title = s.Equals
		}
	case *flow.FindElementStep:
		result.Element = &core.ElementInfo{
			ID:      fmt.Sprintf("mock-element-%d", n),
			Alias:   s.Alias(),
			Locator: s.Selector.Describe(),
			Visible: true,
			Bounds:  core.Bounds{X: 0, Y: 1480, Width: 120, Height: 30},
		}
	case *flow.TakeScreenshotStep:
		result.Data, _ = d.Screenshot()
	}

	return result
}

// Executed returns the descriptions of the steps executed so far.
func (d *Driver) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.executed))
	copy(out, d.executed)
	return out
}

// Closes returns how many times Close was called.
func (d *Driver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// GetState returns a loaded page.
func (d *Driver) GetState() *core.StateSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &core.StateSnapshot{
		Title:      d.title,
		URL:        d.url,
		ReadyState: "complete",
	}
}

// ElementVisible reports every selector visible except the hidden ones.
func (d *Driver) ElementVisible(sel flow.Selector) (bool, error) {
	for _, h := range d.Config.Hidden {
		if h == sel.Describe() {
			return false, nil
		}
	}
	return true, nil
}

// PageSource returns a minimal document for the current page.
func (d *Driver) PageSource() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("<html><head><title>%s</title></head><body data-url=%q></body></html>", d.title, d.url), nil
}

// GetPlatformInfo returns mock platform info.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform:     "mock",
		Browser:      "safari",
		DeviceName:   "Mock Device",
		OSVersion:    "1.0",
		SessionID:    "mock-session",
		ScreenWidth:  375,
		ScreenHeight: 812,
	}
}

// Close records the call.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}
