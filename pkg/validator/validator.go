// Package validator checks scenarios before a session is opened.
// It parses every referenced scenario upfront and reports steps the runner
// could not execute, so a typo never costs a browser session.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/safari-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 1-based; 0 for scenario-level problems
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step %d: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Flows are the parsed scenarios in execution order.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates scenarios.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator. A scenario runs when it has at least one of
// includeTags (or includeTags is empty) and none of excludeTags.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate resolves each reference (a builtin:<name>, a file or a directory of
// .yaml files), parses it and checks its steps. No reference means the
// default built-in scenario.
func (v *Validator) Validate(refs ...string) *Result {
	result := &Result{}
	if len(refs) == 0 {
		refs = []string{""}
	}

	seen := make(map[string]bool)
	for _, ref := range refs {
		for _, path := range v.expand(ref, result) {
			if seen[path] {
				continue
			}
			seen[path] = true
			v.validateOne(path, result)
		}
	}
	return result
}

// expand turns a directory into its scenario files; other references pass through.
func (v *Validator) expand(ref string, result *Result) []string {
	if ref == "" || strings.HasPrefix(ref, flow.BuiltinPrefix) {
		return []string{ref}
	}

	info, err := os.Stat(ref)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    ref,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return nil
	}
	if !info.IsDir() {
		return []string{ref}
	}

	files, err := collectFlowFiles(ref)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    ref,
			Message: fmt.Sprintf("failed to scan directory: %v", err),
		})
		return nil
	}
	if len(files) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			File:    ref,
			Message: "no scenario files found",
		})
	}
	return files
}

// collectFlowFiles finds all .yaml/.yml files in a directory.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func (v *Validator) validateOne(ref string, result *Result) {
	f, err := flow.Load(ref)
	if err != nil {
		name := ref
		if name == "" {
			name = flow.BuiltinPrefix + flow.DefaultScenario
		}
		result.Errors = append(result.Errors, &ValidationError{
			File:    name,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if !v.includes(f) {
		return
	}

	if errs := CheckFlow(f); len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
		return
	}
	result.Flows = append(result.Flows, f)
}

// includes applies the tag filters.
func (v *Validator) includes(f *flow.Flow) bool {
	for _, tag := range v.excludeTags {
		if hasTag(f, tag) {
			return false
		}
	}
	if len(v.includeTags) == 0 {
		return true
	}
	for _, tag := range v.includeTags {
		if hasTag(f, tag) {
			return true
		}
	}
	return false
}

func hasTag(f *flow.Flow, tag string) bool {
	for _, t := range f.Config.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// CheckFlow reports steps that are missing required fields or refer to an
// element alias no earlier findElement step stores.
func CheckFlow(f *flow.Flow) []error {
	var errs []error
	fail := func(i int, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{
			File:    f.SourcePath,
			Step:    i + 1,
			Message: fmt.Sprintf(format, args...),
		})
	}

	aliases := make(map[string]bool)
	needAlias := func(i int, alias string) {
		switch {
		case alias == "":
			fail(i, "%s needs an element alias", f.Steps[i].Type())
		case !aliases[alias]:
			fail(i, "element %q is used before any findElement stores it", alias)
		}
	}

	for i, step := range f.Steps {
		switch s := step.(type) {
		case *flow.OpenURLStep:
			if strings.TrimSpace(s.URL) == "" {
				fail(i, "openUrl needs a url")
			}
		case *flow.AssertTitleStep:
			if s.Equals == "" && s.Contains == "" {
				fail(i, "assertTitle needs equals or contains")
			}
		case *flow.AssertTrueStep:
			if strings.TrimSpace(s.Script) == "" {
				fail(i, "assertTrue needs a condition")
			}
		case *flow.WaitUntilStep:
			if s.ReadyState == "" && s.Visible == nil && s.NotVisible == nil && s.Condition == "" {
				fail(i, "waitUntil needs readyState, visible, notVisible or condition")
			}
			if s.Visible != nil && s.Visible.IsEmpty() {
				fail(i, "waitUntil visible has no locator")
			}
			if s.NotVisible != nil && s.NotVisible.IsEmpty() {
				fail(i, "waitUntil notVisible has no locator")
			}
			if s.TimeoutMs < 0 || s.IntervalMs < 0 {
				fail(i, "waitUntil timeout and interval must not be negative")
			}
		case *flow.FindElementStep:
			if s.Selector.IsEmpty() {
				fail(i, "findElement needs xpath, css or linkText")
				continue
			}
			aliases[s.Alias()] = true
		case *flow.ScrollToStep:
			needAlias(i, s.Element)
			if s.X < 0 || (s.StartY != nil && *s.StartY < 0) {
				fail(i, "scrollTo coordinates must not be negative")
			}
		case *flow.ClickStep:
			needAlias(i, s.Element)
		case *flow.SwipeStep:
			if s.StartX < 0 || s.StartY < 0 || s.EndX < 0 || s.EndY < 0 {
				fail(i, "swipe coordinates must not be negative")
			}
		case *flow.UnsupportedStep:
			fail(i, "unsupported step: %s", s.Reason)
		}
	}
	return errs
}
