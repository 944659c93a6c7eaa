package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected behavior didn't occur)
	StatusErrored                   // Unexpected error (session, server, timeout)
	StatusSkipped                   // Previous step failed or no session
	StatusWarned                    // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// MarshalText lets reports carry the status name instead of its number.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, title mismatch, condition false
	ErrCategoryTimeout                         // Wait or server timeout
	ErrCategoryConnection                      // Automation server unreachable or misbehaving
	ErrCategorySession                         // Session could not be created, was lost, or teardown failed
	ErrCategoryConfig                          // Invalid configuration or scenario
	ErrCategoryInternal                        // Recovered panic or driver returned nothing
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MarshalText lets reports carry the category name instead of its number.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IsFailure reports whether an error of this category is an assertion failure
// (StatusFailed) rather than an infrastructure error (StatusErrored).
func (c ErrorCategory) IsFailure() bool {
	return c == ErrCategoryAssertion
}
