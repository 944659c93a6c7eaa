package flow

import (
	"fmt"
	"strconv"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation
	StepOpenURL StepType = "openUrl"

	// Elements & gestures
	StepFindElement StepType = "findElement"
	StepScrollTo    StepType = "scrollTo"
	StepClick       StepType = "click"
	StepSwipe       StepType = "swipe"

	// Assertions & waits
	StepAssertTitle StepType = "assertTitle"
	StepAssertTrue  StepType = "assertTrue"
	StepWaitUntil   StepType = "waitUntil"

	// Media
	StepTakeScreenshot StepType = "takeScreenshot"
)

// Step is the interface for all scenario steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// OpenURLStep navigates the browser to URL.
type OpenURLStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"`
}

// AssertTitleStep checks the document title of the current page.
type AssertTitleStep struct {
	BaseStep `yaml:",inline"`
	Equals   string `yaml:"equals"`
	Contains string `yaml:"contains"`
}

// AssertTrueStep evaluates a JavaScript condition against the page state
// (title, url, readyState) once.
type AssertTrueStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"condition"`
}

// WaitUntilStep polls until every set predicate holds or the timeout expires.
type WaitUntilStep struct {
	BaseStep   `yaml:",inline"`
	ReadyState string    `yaml:"readyState"` // document.readyState to reach, e.g. "complete"
	Visible    *Selector `yaml:"visible"`    // element that must be present
	NotVisible *Selector `yaml:"notVisible"` // element that must be gone
	Condition  string    `yaml:"condition"`  // JavaScript over title/url/readyState
	IntervalMs int       `yaml:"interval"`   // poll interval
}

// FindElementStep locates one element and stores its reference under As.
type FindElementStep struct {
	BaseStep `yaml:",inline"`
	Selector `yaml:",inline"`
	As       string `yaml:"as"`
}

// Alias returns the name the element reference is stored under.
func (s *FindElementStep) Alias() string {
	if s.As != "" {
		return s.As
	}
	return s.Selector.Describe()
}

// DefaultScrollOffset is added to the element's y when a scrollTo step
// sets no offset.
const DefaultScrollOffset = 200

// ScrollToStep scrolls with a vertical touch drag: press at (X, StartY), move to
// the element's current y plus Offset, release.
type ScrollToStep struct {
	BaseStep   `yaml:",inline"`
	Element    string `yaml:"element"` // alias from a findElement step
	X          int    `yaml:"x"`
	StartY     *int   `yaml:"startY"` // nil means a quarter of the screen height
	Offset     *int   `yaml:"offset"` // nil means DefaultScrollOffset
	DurationMs int    `yaml:"duration"`
}

// ScrollOffset returns Offset, or DefaultScrollOffset when unset.
func (s *ScrollToStep) ScrollOffset() int {
	if s.Offset != nil {
		return *s.Offset
	}
	return DefaultScrollOffset
}

// ClickStep clicks a previously located element.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Element  string `yaml:"element"`
}

// SwipeStep performs a raw press/move/release between two points.
type SwipeStep struct {
	BaseStep   `yaml:",inline"`
	StartX     int `yaml:"startX"`
	StartY     int `yaml:"startY"`
	EndX       int `yaml:"endX"`
	EndY       int `yaml:"endY"`
	DurationMs int `yaml:"duration"`
}

// TakeScreenshotStep saves a PNG of the viewport into the report assets.
type TakeScreenshotStep struct {
	BaseStep `yaml:",inline"`
	Path     string `yaml:"path"`
}

// UnsupportedStep represents a step that failed to parse in lenient mode.
type UnsupportedStep struct {
	BaseStep
	Reason string
}

// Describe returns a description including the unsupported reason.
func (s *UnsupportedStep) Describe() string {
	return fmt.Sprintf("%s (unsupported: %s)", s.StepType, s.Reason)
}

// Describe returns a human-readable description of the navigation step.
func (s *OpenURLStep) Describe() string {
	return "openUrl: " + s.URL
}

// Describe returns a human-readable description of the title assertion.
func (s *AssertTitleStep) Describe() string {
	if s.Contains != "" {
		return "assertTitle contains " + strconv.Quote(s.Contains)
	}
	return "assertTitle: " + strconv.Quote(s.Equals)
}

// Describe returns a human-readable description of the condition assertion.
func (s *AssertTrueStep) Describe() string {
	return "assertTrue: " + s.Script
}

// Describe returns a human-readable description of the wait.
func (s *WaitUntilStep) Describe() string {
	desc := "waitUntil"
	sep := ": "
	if s.ReadyState != "" {
		desc += sep + "readyState=" + s.ReadyState
		sep = ", "
	}
	if s.Visible != nil {
		desc += sep + "visible " + s.Visible.DescribeQuoted()
		sep = ", "
	}
	if s.NotVisible != nil {
		desc += sep + "notVisible " + s.NotVisible.DescribeQuoted()
		sep = ", "
	}
	if s.Condition != "" {
		desc += sep + s.Condition
	}
	return desc
}

// Describe returns a human-readable description of the locate step.
func (s *FindElementStep) Describe() string {
	desc := "findElement: " + s.Selector.DescribeQuoted()
	if s.As != "" {
		desc += " as " + s.As
	}
	return desc
}

// Describe returns a human-readable description of the scroll.
func (s *ScrollToStep) Describe() string {
	return fmt.Sprintf("scrollTo: %s (offset %d)", s.Element, s.ScrollOffset())
}

// Describe returns a human-readable description of the click.
func (s *ClickStep) Describe() string {
	return "click: " + s.Element
}

// Describe returns a human-readable description of the swipe.
func (s *SwipeStep) Describe() string {
	return fmt.Sprintf("swipe: (%d,%d) -> (%d,%d)", s.StartX, s.StartY, s.EndX, s.EndY)
}

// Describe returns a human-readable description of the screenshot step.
func (s *TakeScreenshotStep) Describe() string {
	if s.Path != "" {
		return "takeScreenshot: " + s.Path
	}
	return "takeScreenshot"
}
