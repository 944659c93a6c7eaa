// Package safari implements core.Driver for mobile Safari over a remote
// WebDriver session (Appium XCUITest).
package safari

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/logger"
	"github.com/devicelab-dev/safari-runner/pkg/webdriver"
)

// DefaultScreenHeight is used for the scroll start point when neither the
// options nor the server give a height.
const DefaultScreenHeight = 1334

// Options configure a session.
type Options struct {
	ServerURL       string
	Capabilities    map[string]interface{}
	PageLoadTimeout time.Duration
	// ScreenHeight, when set, is the viewport height used for the scroll start
	// point. Zero uses the height the server reports.
	ScreenHeight int
}

// elementRef is a located element stored under its alias.
type elementRef struct {
	id       string
	selector flow.Selector
}

// Driver implements core.Driver using a WebDriver session.
type Driver struct {
	client       *webdriver.Client
	capabilities map[string]interface{}
	screenHeight int
	elements     map[string]elementRef

	closeOnce sync.Once
	closeErr  error
}

// Open creates a session with the given capabilities. Every failure is
// reported as core.ErrSessionNotCreated. Requests of the session are aborted
// when ctx is done; ending the session is not.
func Open(ctx context.Context, opts Options) (*Driver, error) {
	client := webdriver.NewClientWithContext(ctx, opts.ServerURL)

	logger.WithFields(map[string]interface{}{
		"server":       opts.ServerURL,
		"capabilities": opts.Capabilities,
	}).Info("Creating session")

	if err := client.Connect(opts.Capabilities); err != nil {
		return nil, core.ErrSessionNotCreated.WithCause(err)
	}

	d := newDriver(client, opts)

	if opts.PageLoadTimeout > 0 {
		if err := client.SetTimeouts(opts.PageLoadTimeout, 0); err != nil {
			logger.Warn("Could not set page load timeout: %v", err)
		}
	}

	return d, nil
}

// newDriver wraps a connected client.
func newDriver(client *webdriver.Client, opts Options) *Driver {
	caps := make(map[string]interface{}, len(opts.Capabilities))
	for k, v := range opts.Capabilities {
		caps[k] = v
	}
	return &Driver{
		client:       client,
		capabilities: caps,
		screenHeight: opts.ScreenHeight,
		elements:     make(map[string]elementRef),
	}
}

// Close ends the session. Only the first call talks to the server; later calls
// return the first result.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		if err := d.client.Disconnect(); err != nil {
			d.closeErr = core.ErrTeardownFailed.WithCause(err)
		}
	})
	return d.closeErr
}

// Execute implements core.Driver.
func (d *Driver) Execute(step flow.Step) *core.CommandResult {
	start := time.Now()
	result := d.executeStep(step)
	result.Duration = time.Since(start)
	return result
}

func (d *Driver) executeStep(step flow.Step) *core.CommandResult {
	switch s := step.(type) {
	case *flow.OpenURLStep:
		return d.openURL(s)
	case *flow.AssertTitleStep:
		return d.assertTitle(s)
	case *flow.FindElementStep:
		return d.findElement(s)
	case *flow.ScrollToStep:
		return d.scrollTo(s)
	case *flow.ClickStep:
		return d.click(s)
	case *flow.SwipeStep:
		return d.swipe(s)
	case *flow.TakeScreenshotStep:
		return d.takeScreenshot(s)
	default:
		return errorResult(core.ErrInvalidStep.WithMessage(fmt.Sprintf("unsupported step type: %s", step.Type())), "")
	}
}

// Screenshot implements core.Driver.
func (d *Driver) Screenshot() ([]byte, error) {
	return d.client.Screenshot()
}

// PageSource returns the current document source.
func (d *Driver) PageSource() (string, error) {
	return d.client.Source()
}

// GetState implements core.Driver. Fields the server fails to report are empty.
func (d *Driver) GetState() *core.StateSnapshot {
	state := &core.StateSnapshot{}
	var err error
	if state.ReadyState, err = d.client.ReadyState(); err != nil {
		logger.Debug("readyState: %v", err)
	}
	if state.Title, err = d.client.Title(); err != nil {
		logger.Debug("title: %v", err)
	}
	if state.URL, err = d.client.CurrentURL(); err != nil {
		logger.Debug("url: %v", err)
	}
	return state
}

// ElementVisible implements core.Driver. A missing or detached element is not
// visible; only transport and session errors are returned.
func (d *Driver) ElementVisible(sel flow.Selector) (bool, error) {
	strategy, value := sel.Strategy()
	if strategy == "" {
		return false, core.ErrInvalidStep.WithMessage("empty selector")
	}

	ids, err := d.client.FindElements(strategy, value)
	if err != nil {
		if webdriver.IsCode(err, webdriver.ErrCodeNoSuchElement) {
			return false, nil
		}
		return false, err
	}

	for _, id := range ids {
		displayed, err := d.client.IsElementDisplayed(id)
		if err != nil {
			if webdriver.IsCode(err, webdriver.ErrCodeStaleElement) {
				continue
			}
			return false, err
		}
		if displayed {
			return true, nil
		}
	}
	return false, nil
}

// GetPlatformInfo implements core.Driver.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	w, h := d.client.ScreenSize()
	info := &core.PlatformInfo{
		Platform:     d.client.Platform(),
		Browser:      d.client.Browser(),
		SessionID:    d.client.SessionID(),
		ScreenWidth:  w,
		ScreenHeight: h,
	}
	if v, ok := d.capabilities["platformVersion"].(string); ok {
		info.OSVersion = v
	}
	if v, ok := d.capabilities["deviceName"].(string); ok {
		info.DeviceName = v
	}
	return info
}

// viewportHeight returns the configured height, else the server-reported one,
// else DefaultScreenHeight.
func (d *Driver) viewportHeight() int {
	if d.screenHeight > 0 {
		return d.screenHeight
	}
	if _, h := d.client.ScreenSize(); h > 0 {
		return h
	}
	return DefaultScreenHeight
}
