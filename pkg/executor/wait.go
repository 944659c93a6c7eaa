package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
)

// Wait defaults used when neither the runner config nor the step sets them.
const (
	DefaultWaitTimeout  = 10 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// Check returns nil once the awaited condition holds. Any other error is the
// reason it does not hold yet; wrap it with backoff.Permanent to stop polling.
type Check func() error

// WaitFor polls check at a constant interval until it succeeds, the timeout
// expires or ctx is done. A timeout is reported as core.ErrWaitTimeout caused
// by the last reason check gave.
func WaitFor(ctx context.Context, timeout, interval time.Duration, check Check) error {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var permanent bool
	err := backoff.Retry(func() error {
		err := check()
		var p *backoff.PermanentError
		permanent = errors.As(err, &p)
		return err
	}, backoff.WithContext(backoff.NewConstantBackOff(interval), waitCtx))

	switch {
	case err == nil:
		return nil
	case permanent:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	}
	return core.ErrWaitTimeout.
		WithMessage(fmt.Sprintf("wait condition timed out after %s", timeout)).
		WithCause(err)
}

// executeWait polls every predicate of a waitUntil step against the session.
func (fr *FlowRunner) executeWait(step *flow.WaitUntilStep) *core.CommandResult {
	timeout := fr.config.WaitTimeout
	if step.TimeoutMs > 0 {
		timeout = time.Duration(step.TimeoutMs) * time.Millisecond
	}
	interval := fr.config.PollInterval
	if step.IntervalMs > 0 {
		interval = time.Duration(step.IntervalMs) * time.Millisecond
	}

	polls := 0
	err := WaitFor(fr.ctx, timeout, interval, func() error {
		polls++
		return fr.checkWait(step)
	})
	if err != nil {
		return core.Failure(err, fmt.Sprintf("%s: %v", step.Describe(), err))
	}

	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("Condition met after %d poll(s)", polls),
		Data:    map[string]interface{}{"polls": polls},
	}
}

// checkWait evaluates the predicates once. Session and script errors end the
// wait immediately; everything else is polled again.
func (fr *FlowRunner) checkWait(step *flow.WaitUntilStep) error {
	if step.ReadyState != "" {
		state := fr.driver.GetState()
		if state == nil || state.ReadyState != step.ReadyState {
			got := ""
			if state != nil {
				got = state.ReadyState
			}
			return fmt.Errorf("readyState is %q, want %q", got, step.ReadyState)
		}
	}

	if step.Visible != nil {
		visible, err := fr.driver.ElementVisible(*step.Visible)
		if err != nil {
			return pollError(err)
		}
		if !visible {
			return fmt.Errorf("%s is not visible", step.Visible.DescribeQuoted())
		}
	}

	if step.NotVisible != nil {
		visible, err := fr.driver.ElementVisible(*step.NotVisible)
		if err != nil {
			return pollError(err)
		}
		if visible {
			return fmt.Errorf("%s is still visible", step.NotVisible.DescribeQuoted())
		}
	}

	if step.Condition != "" {
		ok, err := fr.script.EvalCondition(step.Condition, fr.driver.GetState())
		if err != nil {
			return backoff.Permanent(core.ErrScript.WithCause(err))
		}
		if !ok {
			return fmt.Errorf("condition %s is false", step.Condition)
		}
	}

	return nil
}

// pollError stops the wait for errors that polling cannot fix.
func pollError(err error) error {
	execErr := core.Classify(err)
	switch execErr.Category {
	case core.ErrCategorySession, core.ErrCategoryConfig, core.ErrCategoryConnection:
		return backoff.Permanent(execErr)
	}
	return err
}
