package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/webdriver"
)

func TestWaitFor_SucceedsAfterPolls(t *testing.T) {
	polls := 0
	err := WaitFor(context.Background(), time.Second, time.Millisecond, func() error {
		polls++
		if polls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
}

func TestWaitFor_Timeout(t *testing.T) {
	start := time.Now()
	err := WaitFor(context.Background(), 50*time.Millisecond, 5*time.Millisecond, func() error {
		return errors.New("readyState is \"loading\"")
	})
	if !errors.Is(err, core.ErrWaitTimeout) {
		t.Fatalf("error = %v, want wait_timeout", err)
	}
	if !strings.Contains(err.Error(), "loading") {
		t.Errorf("error should carry the last reason: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitFor took %s", elapsed)
	}
}

func TestWaitFor_PermanentStopsPolling(t *testing.T) {
	polls := 0
	stop := core.ErrSessionLost
	err := WaitFor(context.Background(), time.Second, time.Millisecond, func() error {
		polls++
		return backoff.Permanent(stop)
	})
	if polls != 1 {
		t.Errorf("polls = %d, want 1", polls)
	}
	if !errors.Is(err, core.ErrSessionLost) {
		t.Errorf("error = %v, want session_lost", err)
	}
}

func TestWaitFor_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	err := WaitFor(ctx, time.Second, time.Millisecond, func() error {
		polls++
		if polls == 2 {
			cancel()
		}
		return errors.New("not yet")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, core.ErrWaitTimeout) {
		t.Error("cancellation must not be reported as a timeout")
	}
}

func newWaitRunner(d *fakeDriver) *FlowRunner {
	return &FlowRunner{
		ctx:    context.Background(),
		driver: d,
		config: quickConfig(),
		script: NewScriptEngine(),
	}
}

func TestExecuteWait_ReadyState(t *testing.T) {
	calls := 0
	d := &fakeDriver{stateFunc: func() *core.StateSnapshot {
		calls++
		if calls < 3 {
			return &core.StateSnapshot{ReadyState: "loading"}
		}
		return &core.StateSnapshot{ReadyState: "complete"}
	}}
	fr := newWaitRunner(d)
	defer fr.script.Close()

	result := fr.executeWait(&flow.WaitUntilStep{ReadyState: "complete"})
	if !result.Success {
		t.Fatalf("wait failed: %v", result.Error)
	}
	if polls := result.Data.(map[string]interface{})["polls"]; polls != 3 {
		t.Errorf("polls = %v, want 3", polls)
	}
}

func TestExecuteWait_VisibleTimesOut(t *testing.T) {
	d := &fakeDriver{visibleFunc: func(flow.Selector) (bool, error) { return false, nil }}
	fr := newWaitRunner(d)
	defer fr.script.Close()

	step := &flow.WaitUntilStep{
		BaseStep: flow.BaseStep{TimeoutMs: 30},
		Visible:  &flow.Selector{XPath: "//a[@href='/2018/program.html']"},
	}
	result := fr.executeWait(step)
	if result.Success {
		t.Fatal("expected timeout")
	}
	if !errors.Is(result.Error, core.ErrWaitTimeout) {
		t.Errorf("error = %v", result.Error)
	}
	if !strings.Contains(result.Error.Error(), "is not visible") {
		t.Errorf("error should name the selector: %v", result.Error)
	}
}

func TestExecuteWait_NotVisible(t *testing.T) {
	calls := 0
	d := &fakeDriver{visibleFunc: func(flow.Selector) (bool, error) {
		calls++
		return calls < 2, nil
	}}
	fr := newWaitRunner(d)
	defer fr.script.Close()

	result := fr.executeWait(&flow.WaitUntilStep{NotVisible: &flow.Selector{CSS: ".spinner"}})
	if !result.Success {
		t.Fatalf("wait failed: %v", result.Error)
	}
}

func TestExecuteWait_SessionErrorStopsImmediately(t *testing.T) {
	calls := 0
	d := &fakeDriver{visibleFunc: func(flow.Selector) (bool, error) {
		calls++
		return false, &webdriver.Error{Code: webdriver.ErrCodeInvalidSession, Message: "session gone"}
	}}
	fr := newWaitRunner(d)
	defer fr.script.Close()

	result := fr.executeWait(&flow.WaitUntilStep{Visible: &flow.Selector{XPath: "//a"}})
	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("polled %d times, want 1", calls)
	}
	if !errors.Is(result.Error, core.ErrSessionLost) {
		t.Errorf("error = %v, want session_lost", result.Error)
	}
}

func TestExecuteWait_Condition(t *testing.T) {
	d := &fakeDriver{}
	fr := newWaitRunner(d)
	defer fr.script.Close()

	result := fr.executeWait(&flow.WaitUntilStep{Condition: "readyState === 'complete' && title.length > 0"})
	if !result.Success {
		t.Fatalf("wait failed: %v", result.Error)
	}

	result = fr.executeWait(&flow.WaitUntilStep{Condition: "this is not javascript"})
	if result.Success || !errors.Is(result.Error, core.ErrScript) {
		t.Errorf("syntax error should fail with script_error, got %v", result.Error)
	}
}
