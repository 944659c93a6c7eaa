package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/devicelab-dev/safari-runner/pkg/webdriver"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExecutionError by code, so errors.Is(err, ErrWaitTimeout)
// holds for copies made with WithCause/WithMessage.
func (e *ExecutionError) Is(target error) bool {
	var t *ExecutionError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := *e
	c.Message = msg
	return &c
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c := *e
	c.Details = merged
	return &c
}

// Predefined errors
var (
	// Session errors
	ErrSessionNotCreated = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_not_created",
		Message:  "could not create browser session",
	}
	ErrSessionLost = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_lost",
		Message:  "browser session is no longer valid",
	}
	ErrTeardownFailed = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "teardown_failed",
		Message:  "failed to end browser session",
	}

	// Connection errors
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}

	// Assertion errors
	ErrTitleMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "title_mismatch",
		Message:  "page title does not match",
	}
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrElementNotVisible = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_visible",
		Message:  "element not visible",
	}
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "stale_element",
		Message:  "element is no longer attached to the page",
	}
	ErrConditionNotMet = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "condition_not_met",
		Message:  "condition was not met",
	}
	ErrScript = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "script_error",
		Message:  "script evaluation failed",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrInvalidStep = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_step",
		Message:  "invalid step",
	}
	ErrUnknownElement = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "unknown_element",
		Message:  "element alias was never found",
	}

	// Internal errors
	ErrStepPanicked = &ExecutionError{
		Category: ErrCategoryInternal,
		Code:     "step_panicked",
		Message:  "step panicked",
	}
	ErrNoResult = &ExecutionError{
		Category: ErrCategoryInternal,
		Code:     "no_result",
		Message:  "driver returned no result",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Classify maps any error from a driver or wait into an ExecutionError.
// ExecutionErrors pass through unchanged; WebDriver, network and context
// errors are wrapped in the matching predefined error.
func Classify(err error) *ExecutionError {
	if err == nil {
		return nil
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}

	var wdErr *webdriver.Error
	if errors.As(err, &wdErr) {
		switch wdErr.Code {
		case webdriver.ErrCodeNoSuchElement:
			return ErrElementNotFound.WithCause(err)
		case webdriver.ErrCodeStaleElement:
			return ErrStaleElement.WithCause(err)
		case webdriver.ErrCodeSessionNotCreated:
			return ErrSessionNotCreated.WithCause(err)
		case webdriver.ErrCodeInvalidSession:
			return ErrSessionLost.WithCause(err)
		case webdriver.ErrCodeTimeout:
			return ErrTimeout.WithCause(err)
		case webdriver.ErrCodeJavaScript:
			return ErrScript.WithCause(err)
		}
		return NewExecutionError(ErrCategoryConnection, "webdriver_error", "automation server returned an error").WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return NewExecutionError(ErrCategoryConnection, "canceled", "execution canceled").WithCause(err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return ErrServerUnreachable.WithCause(err)
	}

	return NewExecutionError(ErrCategoryInternal, "unknown", "unexpected error").WithCause(err)
}
