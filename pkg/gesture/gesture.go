// Package gesture builds touch gestures (press, move, release) and encodes them as
// W3C pointer action sequences that the server performs as a single unit.
package gesture

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the kind of a gesture step.
type Kind string

// Gesture step kinds.
const (
	Press   Kind = "press"
	Move    Kind = "move"
	Release Kind = "release"
	Wait    Kind = "wait"
)

// DefaultMoveDuration is the pointerMove duration used when a move does not set one.
const DefaultMoveDuration = 500

// Step is one entry of a gesture.
type Step struct {
	Kind       Kind
	X, Y       int
	DurationMs int
}

// Gesture is an ordered press/move/release description. Build it with New and the
// chaining methods, then hand it to Actions. It is not reusable across sessions
// and carries no state of its own.
type Gesture struct {
	PointerID string
	Steps     []Step
}

// New starts an empty touch gesture for pointer "finger1".
func New() *Gesture {
	return &Gesture{PointerID: "finger1"}
}

// Press puts the finger down at (x, y).
func (g *Gesture) Press(x, y int) *Gesture {
	g.Steps = append(g.Steps, Step{Kind: Press, X: x, Y: y})
	return g
}

// MoveTo drags the finger to (x, y) over durationMs (DefaultMoveDuration when <= 0).
func (g *Gesture) MoveTo(x, y, durationMs int) *Gesture {
	if durationMs <= 0 {
		durationMs = DefaultMoveDuration
	}
	g.Steps = append(g.Steps, Step{Kind: Move, X: x, Y: y, DurationMs: durationMs})
	return g
}

// Pause holds the finger still for durationMs.
func (g *Gesture) Pause(durationMs int) *Gesture {
	g.Steps = append(g.Steps, Step{Kind: Wait, DurationMs: durationMs})
	return g
}

// Release lifts the finger.
func (g *Gesture) Release() *Gesture {
	g.Steps = append(g.Steps, Step{Kind: Release})
	return g
}

// VerticalScroll is press at (x, fromY), move to (x, toY), release.
func VerticalScroll(x, fromY, toY, durationMs int) *Gesture {
	return New().Press(x, fromY).MoveTo(x, toY, durationMs).Release()
}

// Errors returned by Validate.
var (
	ErrEmpty          = errors.New("gesture has no steps")
	ErrMustStartPress = errors.New("gesture must start with press")
	ErrMustEndRelease = errors.New("gesture must end with release")
)

// Validate checks the press ... release shape: exactly one press first, exactly one
// release last, no negative coordinates.
func (g *Gesture) Validate() error {
	if len(g.Steps) == 0 {
		return ErrEmpty
	}
	if g.Steps[0].Kind != Press {
		return ErrMustStartPress
	}
	if g.Steps[len(g.Steps)-1].Kind != Release {
		return ErrMustEndRelease
	}
	for i, s := range g.Steps {
		if i > 0 && s.Kind == Press {
			return fmt.Errorf("step %d: second press before release", i)
		}
		if i < len(g.Steps)-1 && s.Kind == Release {
			return fmt.Errorf("step %d: release before end of gesture", i)
		}
		if s.X < 0 || s.Y < 0 {
			return fmt.Errorf("step %d: negative coordinate (%d,%d)", i, s.X, s.Y)
		}
		if s.DurationMs < 0 {
			return fmt.Errorf("step %d: negative duration", i)
		}
	}
	return nil
}

// Actions validates the gesture and returns the W3C action sequences for POST /actions.
func (g *Gesture) Actions() ([]map[string]interface{}, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	var actions []map[string]interface{}
	for _, s := range g.Steps {
		switch s.Kind {
		case Press:
			actions = append(actions,
				map[string]interface{}{"type": "pointerMove", "duration": 0, "x": s.X, "y": s.Y, "origin": "viewport"},
				map[string]interface{}{"type": "pointerDown", "button": 0},
			)
		case Move:
			actions = append(actions,
				map[string]interface{}{"type": "pointerMove", "duration": s.DurationMs, "x": s.X, "y": s.Y, "origin": "viewport"},
			)
		case Wait:
			actions = append(actions, map[string]interface{}{"type": "pause", "duration": s.DurationMs})
		case Release:
			actions = append(actions, map[string]interface{}{"type": "pointerUp", "button": 0})
		}
	}

	pointerID := g.PointerID
	if pointerID == "" {
		pointerID = "finger1"
	}
	return []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         pointerID,
			"parameters": map[string]interface{}{"pointerType": "touch"},
			"actions":    actions,
		},
	}, nil
}

// String renders the gesture compactly, e.g. "press(0,333) move(0,1680) release".
func (g *Gesture) String() string {
	parts := make([]string, 0, len(g.Steps))
	for _, s := range g.Steps {
		switch s.Kind {
		case Press:
			parts = append(parts, fmt.Sprintf("press(%d,%d)", s.X, s.Y))
		case Move:
			parts = append(parts, fmt.Sprintf("move(%d,%d)", s.X, s.Y))
		case Wait:
			parts = append(parts, fmt.Sprintf("wait(%dms)", s.DurationMs))
		case Release:
			parts = append(parts, "release")
		}
	}
	return strings.Join(parts, " ")
}
