package safari

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/gesture"
	"github.com/devicelab-dev/safari-runner/pkg/logger"
)

// Navigation

func (d *Driver) openURL(step *flow.OpenURLStep) *core.CommandResult {
	if step.URL == "" {
		return errorResult(core.ErrInvalidStep.WithMessage("openUrl requires a url"), "")
	}
	if err := d.client.NavigateTo(step.URL); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to open %s", step.URL))
	}
	return successResult(fmt.Sprintf("Opened %s", step.URL), nil)
}

// Assertions

func (d *Driver) assertTitle(step *flow.AssertTitleStep) *core.CommandResult {
	title, err := d.client.Title()
	if err != nil {
		return errorResult(err, "Failed to read title")
	}

	details := map[string]interface{}{"actual": title}
	switch {
	case step.Equals != "" && title != step.Equals:
		details["expected"] = step.Equals
		return titleMismatch(fmt.Sprintf("expected title %q, got %q", step.Equals, title), details)
	case step.Contains != "" && !strings.Contains(title, step.Contains):
		details["expected"] = step.Contains
		return titleMismatch(fmt.Sprintf("expected title containing %q, got %q", step.Contains, title), details)
	}

	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("Title is %q", title),
		Data:    details,
	}
}

func titleMismatch(msg string, details map[string]interface{}) *core.CommandResult {
	return &core.CommandResult{
		Success: false,
		Error:   core.ErrTitleMismatch.WithMessage(msg).WithDetails(details),
		Message: msg,
		Data:    details,
	}
}

// Elements

func (d *Driver) findElement(step *flow.FindElementStep) *core.CommandResult {
	strategy, value := step.Selector.Strategy()
	if strategy == "" {
		return errorResult(core.ErrInvalidStep.WithMessage("findElement requires xpath, css or linkText"), "")
	}

	id, err := d.client.FindElement(strategy, value)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Element not found: %s", step.Selector.DescribeQuoted()))
	}

	alias := step.Alias()
	d.elements[alias] = elementRef{id: id, selector: step.Selector}

	info := &core.ElementInfo{
		ID:      id,
		Alias:   alias,
		Locator: step.Selector.Describe(),
	}
	if x, y, w, h, err := d.client.GetElementRect(id); err == nil {
		info.Bounds = core.Bounds{X: x, Y: y, Width: w, Height: h}
	}
	if visible, err := d.client.IsElementDisplayed(id); err == nil {
		info.Visible = visible
	}
	if text, err := d.client.GetElementText(id); err == nil {
		info.Text = text
	}

	logger.Debug("Stored element %s as %q", id, alias)
	return successResult(fmt.Sprintf("Found %s", step.Selector.DescribeQuoted()), info)
}

// lookup returns the element stored under alias.
func (d *Driver) lookup(alias string) (elementRef, *core.CommandResult) {
	ref, ok := d.elements[alias]
	if !ok {
		return elementRef{}, errorResult(core.ErrUnknownElement.WithMessage(fmt.Sprintf("no element stored as %q", alias)), "")
	}
	return ref, nil
}

func (d *Driver) click(step *flow.ClickStep) *core.CommandResult {
	ref, fail := d.lookup(step.Element)
	if fail != nil {
		return fail
	}

	if err := d.client.ClickElement(ref.id); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to click %s", step.Element))
	}
	return successResult(fmt.Sprintf("Clicked %s", step.Element), &core.ElementInfo{
		ID:      ref.id,
		Alias:   step.Element,
		Locator: ref.selector.Describe(),
	})
}

// Gestures

// scrollTo drags from (x, startY) to the element's current y plus the offset.
// startY defaults to a quarter of the viewport height.
func (d *Driver) scrollTo(step *flow.ScrollToStep) *core.CommandResult {
	ref, fail := d.lookup(step.Element)
	if fail != nil {
		return fail
	}

	x, y, w, h, err := d.client.GetElementRect(ref.id)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Failed to read position of %s", step.Element))
	}

	startY := d.viewportHeight() / 4
	if step.StartY != nil {
		startY = *step.StartY
	}
	duration := step.DurationMs
	if duration <= 0 {
		duration = gesture.DefaultMoveDuration
	}

	g := gesture.VerticalScroll(step.X, startY, y+step.ScrollOffset(), duration)
	if res := d.perform(g); res != nil {
		return res
	}

	return successResult(fmt.Sprintf("Scrolled to %s: %s", step.Element, g), &core.ElementInfo{
		ID:      ref.id,
		Alias:   step.Element,
		Locator: ref.selector.Describe(),
		Bounds:  core.Bounds{X: x, Y: y, Width: w, Height: h},
	})
}

func (d *Driver) swipe(step *flow.SwipeStep) *core.CommandResult {
	duration := step.DurationMs
	if duration <= 0 {
		duration = gesture.DefaultMoveDuration
	}

	g := gesture.New().
		Press(step.StartX, step.StartY).
		MoveTo(step.EndX, step.EndY, duration).
		Release()
	if res := d.perform(g); res != nil {
		return res
	}
	return successResult(fmt.Sprintf("Swiped %s", g), nil)
}

// perform sends a gesture as W3C pointer actions. It returns nil on success.
func (d *Driver) perform(g *gesture.Gesture) *core.CommandResult {
	actions, err := g.Actions()
	if err != nil {
		return errorResult(core.ErrInvalidStep.WithCause(err), fmt.Sprintf("Invalid gesture %s", g))
	}
	logger.Debug("Performing gesture %s", g)
	if err := d.client.PerformActions(actions); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to perform %s", g))
	}
	if err := d.client.ReleaseActions(); err != nil {
		logger.Debug("release actions: %v", err)
	}
	return nil
}

// Media

func (d *Driver) takeScreenshot(step *flow.TakeScreenshotStep) *core.CommandResult {
	data, err := d.client.Screenshot()
	if err != nil {
		return errorResult(err, fmt.Sprintf("Failed to take screenshot: %v", err))
	}

	return &core.CommandResult{
		Success: true,
		Message: "Screenshot captured",
		Data:    data,
	}
}

// Helpers

func successResult(msg string, elem *core.ElementInfo) *core.CommandResult {
	return &core.CommandResult{
		Success: true,
		Message: msg,
		Element: elem,
	}
}

// errorResult classifies err so callers can rely on *core.ExecutionError.
func errorResult(err error, msg string) *core.CommandResult {
	execErr := core.Classify(err)
	if msg == "" {
		msg = execErr.Error()
	}
	return &core.CommandResult{
		Success: false,
		Error:   execErr,
		Message: msg,
	}
}
