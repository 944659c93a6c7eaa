package core

import (
	"encoding/json"
	"testing"
)

func TestStepStatus_String(t *testing.T) {
	tests := []struct {
		status   StepStatus
		expected string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusPassed, "passed"},
		{StatusFailed, "failed"},
		{StatusErrored, "errored"},
		{StatusSkipped, "skipped"},
		{StatusWarned, "warned"},
		{StepStatus(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("StepStatus(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestStepStatus_IsTerminal(t *testing.T) {
	terminalStatuses := []StepStatus{StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned}
	nonTerminalStatuses := []StepStatus{StatusPending, StatusRunning}

	for _, s := range terminalStatuses {
		if !s.IsTerminal() {
			t.Errorf("StepStatus(%s).IsTerminal() = false, want true", s)
		}
	}

	for _, s := range nonTerminalStatuses {
		if s.IsTerminal() {
			t.Errorf("StepStatus(%s).IsTerminal() = true, want false", s)
		}
	}
}

func TestStepStatus_IsSuccess(t *testing.T) {
	if !StatusPassed.IsSuccess() || !StatusWarned.IsSuccess() {
		t.Error("passed and warned should be success")
	}
	for _, s := range []StepStatus{StatusFailed, StatusErrored, StatusSkipped, StatusPending} {
		if s.IsSuccess() {
			t.Errorf("StepStatus(%s).IsSuccess() = true", s)
		}
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Status   StepStatus    `json:"status"`
		Category ErrorCategory `json:"category"`
	}{StatusWarned, ErrCategorySession})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"status":"warned","category":"session"}` {
		t.Errorf("json = %s", data)
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryAssertion, "assertion"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryConnection, "connection"},
		{ErrCategorySession, "session"},
		{ErrCategoryConfig, "config"},
		{ErrCategoryInternal, "internal"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}

func TestErrorCategory_IsFailure(t *testing.T) {
	if !ErrCategoryAssertion.IsFailure() {
		t.Error("assertion should be a failure")
	}
	if ErrCategoryTimeout.IsFailure() || ErrCategorySession.IsFailure() {
		t.Error("timeout and session are errors, not failures")
	}
}
