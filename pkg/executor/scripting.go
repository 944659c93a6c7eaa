package executor

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles JavaScript evaluation and variable management for one flow.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports process environment variables whose names look like
// THING or MY_VAR.
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.FindString(name) == name {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// ExpandVariables expands ${expr} and $VAR syntax in text. A ${expr} that
// cannot be evaluated, including one naming an undefined variable, is an error.
func (se *ScriptEngine) ExpandVariables(text string) (string, error) {
	if !strings.Contains(text, "$") {
		return text, nil
	}

	result, err := se.js.ExpandVariables(text)
	if err != nil {
		return text, err
	}

	return se.expandDollarVars(result), nil
}

// expandDollarVars expands $VAR syntax (without braces) using stored variables.
func (se *ScriptEngine) expandDollarVars(text string) string {
	// Longest first so $BASE_URL wins over $BASE
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		endPos := pos + len(pattern)
		if endPos < len(text) && isIdentByte(text[endPos]) {
			idx = endPos
			continue
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

// EvalCondition evaluates a JavaScript condition with the page state exposed
// as title, url and readyState. The result follows JavaScript truthiness.
func (se *ScriptEngine) EvalCondition(script string, state *core.StateSnapshot) (bool, error) {
	script = se.expandDollarVars(extractJS(script))

	for name, value := range state.Vars() {
		se.js.SetVariable(name, value)
	}
	for _, name := range envVarPattern.FindAllString(script, -1) {
		se.js.DefineUndefinedIfMissing(name)
	}

	return se.js.EvalBool(script)
}

// ExecuteAssertTrue handles the assertTrue step.
func (se *ScriptEngine) ExecuteAssertTrue(step *flow.AssertTrueStep, state *core.StateSnapshot) *core.CommandResult {
	ok, err := se.EvalCondition(step.Script, state)
	if err != nil {
		return core.Failure(core.ErrScript.WithCause(err),
			fmt.Sprintf("Assertion evaluation failed: %v", err))
	}

	if !ok {
		err := core.ErrConditionNotMet.
			WithMessage("condition is false: " + step.Script).
			WithDetails(state.Vars())
		return core.Failure(err, fmt.Sprintf("assertTrue failed: %s", step.Script))
	}

	return core.Success("Assertion passed")
}

// extractJS extracts JavaScript from a ${...} wrapper if present.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// expander expands strings until the first error, then passes them through.
type expander struct {
	se  *ScriptEngine
	err error
}

func (x *expander) str(s string) string {
	if x.err != nil {
		return s
	}
	out, err := x.se.ExpandVariables(s)
	if err != nil {
		x.err = err
		return s
	}
	return out
}

func (x *expander) selector(sel flow.Selector) flow.Selector {
	sel.XPath = x.str(sel.XPath)
	sel.CSS = x.str(sel.CSS)
	sel.LinkText = x.str(sel.LinkText)
	return sel
}

func (x *expander) selectorPtr(sel *flow.Selector) *flow.Selector {
	if sel == nil {
		return nil
	}
	expanded := x.selector(*sel)
	return &expanded
}

// ExpandStep returns a copy of step with variables expanded in its string
// fields. The parsed flow is never modified.
func (se *ScriptEngine) ExpandStep(step flow.Step) (flow.Step, error) {
	x := &expander{se: se}

	var out flow.Step
	switch s := step.(type) {
	case *flow.OpenURLStep:
		c := *s
		c.URL = x.str(s.URL)
		out = &c
	case *flow.AssertTitleStep:
		c := *s
		c.Equals = x.str(s.Equals)
		c.Contains = x.str(s.Contains)
		out = &c
	case *flow.WaitUntilStep:
		c := *s
		c.ReadyState = x.str(s.ReadyState)
		c.Visible = x.selectorPtr(s.Visible)
		c.NotVisible = x.selectorPtr(s.NotVisible)
		out = &c
	case *flow.FindElementStep:
		c := *s
		c.Selector = x.selector(s.Selector)
		out = &c
	case *flow.TakeScreenshotStep:
		c := *s
		c.Path = x.str(s.Path)
		out = &c
	default:
		// assertTrue conditions are evaluated as JavaScript with the variables
		// in scope; click/scrollTo/swipe carry no expandable strings.
		out = step
	}

	if x.err != nil {
		return step, core.ErrInvalidStep.
			WithMessage(fmt.Sprintf("cannot expand variables in %s", step.Describe())).
			WithCause(x.err)
	}
	return out, nil
}
