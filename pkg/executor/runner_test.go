package executor

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
)

// fakeDriver implements core.Driver for testing.
type fakeDriver struct {
	executeFunc    func(step flow.Step) *core.CommandResult
	screenshotFunc func() ([]byte, error)
	stateFunc      func() *core.StateSnapshot
	visibleFunc    func(sel flow.Selector) (bool, error)
	closeErr       error

	mu       sync.Mutex
	executed []flow.Step
	closes   int
}

func (d *fakeDriver) Execute(step flow.Step) *core.CommandResult {
	d.mu.Lock()
	d.executed = append(d.executed, step)
	d.mu.Unlock()
	if d.executeFunc != nil {
		return d.executeFunc(step)
	}
	return &core.CommandResult{Success: true, Duration: time.Millisecond}
}

func (d *fakeDriver) Screenshot() ([]byte, error) {
	if d.screenshotFunc != nil {
		return d.screenshotFunc()
	}
	return []byte{0x89, 0x50, 0x4E, 0x47}, nil // PNG magic bytes
}

func (d *fakeDriver) GetState() *core.StateSnapshot {
	if d.stateFunc != nil {
		return d.stateFunc()
	}
	return &core.StateSnapshot{Title: "Barcamp Brno 2018", URL: "http://www.barcampbrno.cz/2018/index.html", ReadyState: "complete"}
}

func (d *fakeDriver) ElementVisible(sel flow.Selector) (bool, error) {
	if d.visibleFunc != nil {
		return d.visibleFunc(sel)
	}
	return true, nil
}

func (d *fakeDriver) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{Platform: "iOS", Browser: "safari", OSVersion: "12.1", DeviceName: "iPhone XS"}
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return d.closeErr
}

func (d *fakeDriver) executedDescriptions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.executed))
	for i, s := range d.executed {
		out[i] = s.Describe()
	}
	return out
}

func factoryFor(d core.Driver) DriverFactory {
	return func(context.Context) (core.Driver, error) { return d, nil }
}

func openURL(url string) *flow.OpenURLStep {
	return &flow.OpenURLStep{BaseStep: flow.BaseStep{StepType: flow.StepOpenURL}, URL: url}
}

func assertTitle(title string) *flow.AssertTitleStep {
	return &flow.AssertTitleStep{BaseStep: flow.BaseStep{StepType: flow.StepAssertTitle}, Equals: title}
}

func click(alias string) *flow.ClickStep {
	return &flow.ClickStep{BaseStep: flow.BaseStep{StepType: flow.StepClick}, Element: alias}
}

func testFlow(name string, steps ...flow.Step) *flow.Flow {
	return &flow.Flow{SourcePath: name + ".yaml", Config: flow.Config{Name: name}, Steps: steps}
}

func quickConfig() RunnerConfig {
	return RunnerConfig{
		WaitTimeout:  200 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}

func TestRunner_Run_AllPassed(t *testing.T) {
	driver := &fakeDriver{}
	runner := New(factoryFor(driver), quickConfig())

	suite := runner.Run(context.Background(), []*flow.Flow{
		testFlow("first", openURL("http://a.test"), assertTitle("Barcamp Brno 2018")),
		testFlow("second", openURL("http://b.test")),
	})

	if _, err := uuid.Parse(suite.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", suite.RunID, err)
	}
	if suite.TotalFlows != 2 || suite.PassedFlows != 2 || !suite.Success() {
		t.Errorf("suite = %d total, %d passed", suite.TotalFlows, suite.PassedFlows)
	}

	f := suite.Flows[0]
	if f.Status != core.StatusPassed {
		t.Errorf("Status = %s, want passed", f.Status)
	}
	if f.PassedSteps != 2 || f.TotalSteps != 2 {
		t.Errorf("steps = %d/%d", f.PassedSteps, f.TotalSteps)
	}
	if f.PlatformInfo == nil || f.PlatformInfo.DeviceName != "iPhone XS" {
		t.Errorf("PlatformInfo = %+v", f.PlatformInfo)
	}
	if f.Teardown == nil || !f.Teardown.Attempted || f.Teardown.Error != "" {
		t.Errorf("Teardown = %+v", f.Teardown)
	}
	if f.Steps[0].ExecutedBy != core.ExecutedByDriver {
		t.Errorf("ExecutedBy = %s", f.Steps[0].ExecutedBy)
	}
	// one session per flow
	if driver.closes != 2 {
		t.Errorf("Close called %d times, want 2", driver.closes)
	}
}

func TestRunner_RequiredFailureSkipsRemaining(t *testing.T) {
	driver := &fakeDriver{
		executeFunc: func(step flow.Step) *core.CommandResult {
			if step.Type() == flow.StepAssertTitle {
				return core.Failure(core.ErrTitleMismatch.WithMessage(`expected "Barcamp Brno 2018", got "Other"`), "title mismatch")
			}
			return core.Success("ok")
		},
	}
	runner := New(factoryFor(driver), quickConfig())

	f := runner.RunFlow(context.Background(),
		testFlow("mismatch", openURL("http://a.test"), assertTitle("Barcamp Brno 2018"), click("program"), openURL("http://b.test")), 0, 1)

	if f.Status != core.StatusFailed {
		t.Errorf("Status = %s, want failed", f.Status)
	}
	if got := driver.executedDescriptions(); len(got) != 2 {
		t.Errorf("executed %v, want only the first two steps", got)
	}
	if f.Steps[1].ErrorCode != "title_mismatch" || f.Steps[1].Category != core.ErrCategoryAssertion {
		t.Errorf("step 2 = %s/%s", f.Steps[1].ErrorCode, f.Steps[1].Category)
	}
	for _, i := range []int{2, 3} {
		if f.Steps[i].Status != core.StatusSkipped {
			t.Errorf("step %d status = %s, want skipped", i+1, f.Steps[i].Status)
		}
	}
	if f.SkippedSteps != 2 || f.FailedSteps != 1 {
		t.Errorf("counts = failed %d skipped %d", f.FailedSteps, f.SkippedSteps)
	}
	if !strings.Contains(f.Error, "Other") {
		t.Errorf("Error = %q", f.Error)
	}
	if driver.closes != 1 {
		t.Errorf("Close called %d times, want 1", driver.closes)
	}
}

func TestRunner_InfrastructureErrorIsErrored(t *testing.T) {
	driver := &fakeDriver{
		executeFunc: func(step flow.Step) *core.CommandResult {
			return core.Failure(core.ErrSessionLost, "gone")
		},
	}
	f := New(factoryFor(driver), quickConfig()).RunFlow(context.Background(), testFlow("lost", openURL("http://a.test")), 0, 1)

	if f.Status != core.StatusErrored {
		t.Errorf("Status = %s, want errored", f.Status)
	}
	if f.Steps[0].ErrorCode != "session_lost" {
		t.Errorf("ErrorCode = %s", f.Steps[0].ErrorCode)
	}
}

func TestRunner_OptionalFailureWarns(t *testing.T) {
	marker := openURL("https://media.makeameme.org/created/yes-it-works.jpg")
	marker.Optional = true
	marker.StepLabel = "success marker"

	driver := &fakeDriver{
		executeFunc: func(step flow.Step) *core.CommandResult {
			if step.IsOptional() {
				return core.Failure(errors.New("network down"), "navigation failed")
			}
			return core.Success("ok")
		},
	}
	suite := New(factoryFor(driver), quickConfig()).Run(context.Background(),
		[]*flow.Flow{testFlow("marker", openURL("http://a.test"), marker)})

	f := suite.Flows[0]
	if f.Status != core.StatusWarned {
		t.Errorf("Status = %s, want warned", f.Status)
	}
	if f.Steps[1].Status != core.StatusWarned || f.Steps[1].Name() != "success marker" {
		t.Errorf("marker step = %s %q", f.Steps[1].Status, f.Steps[1].Name())
	}
	if !suite.Success() || suite.PassedFlows != 1 {
		t.Error("warned flow should count as passed")
	}
}

func TestRunner_SessionNotCreated(t *testing.T) {
	called := false
	factory := func(context.Context) (core.Driver, error) {
		called = true
		return nil, errors.New("connection refused")
	}

	f := New(factory, quickConfig()).RunFlow(context.Background(),
		testFlow("nosession", openURL("http://a.test"), assertTitle("x")), 0, 1)

	if !called {
		t.Fatal("factory not called")
	}
	if f.Status != core.StatusErrored {
		t.Errorf("Status = %s, want errored", f.Status)
	}
	if !strings.Contains(f.SessionError, "could not create browser session") {
		t.Errorf("SessionError = %q", f.SessionError)
	}
	if f.SkippedSteps != 2 || f.TotalSteps != 2 {
		t.Errorf("steps = %d skipped of %d", f.SkippedSteps, f.TotalSteps)
	}
	if f.Teardown != nil {
		t.Error("no teardown without a session")
	}
}

func TestRunner_SessionNotCreated_ClassifiedCauses(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unreachable", &url.Error{Op: "Post", URL: "http://127.0.0.1:1234/wd/hub/session", Err: errors.New("connection refused")}},
		{"cancelled", context.Canceled},
		{"already classified", core.ErrSessionNotCreated.WithCause(errors.New("no device"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := func(context.Context) (core.Driver, error) { return nil, tt.err }

			f := New(factory, quickConfig()).RunFlow(context.Background(), testFlow("nosession", openURL("http://a.test")), 0, 1)

			if f.Status != core.StatusErrored {
				t.Errorf("Status = %s, want errored", f.Status)
			}
			if !strings.HasPrefix(f.SessionError, "could not create browser session: ") {
				t.Errorf("SessionError = %q", f.SessionError)
			}
			if strings.Count(f.SessionError, "could not create browser session") != 1 {
				t.Errorf("SessionError wraps twice: %q", f.SessionError)
			}
		})
	}
}

func TestRunner_TeardownErrorKeepsOutcome(t *testing.T) {
	driver := &fakeDriver{closeErr: core.ErrTeardownFailed.WithCause(errors.New("boom"))}
	f := New(factoryFor(driver), quickConfig()).RunFlow(context.Background(), testFlow("td", openURL("http://a.test")), 0, 1)

	if f.Status != core.StatusPassed {
		t.Errorf("Status = %s, want passed", f.Status)
	}
	if f.Teardown == nil || !strings.Contains(f.Teardown.Error, "boom") {
		t.Errorf("Teardown = %+v", f.Teardown)
	}
}

func TestRunner_PanicIsRecovered(t *testing.T) {
	driver := &fakeDriver{
		executeFunc: func(step flow.Step) *core.CommandResult {
			panic("driver bug")
		},
	}
	f := New(factoryFor(driver), quickConfig()).RunFlow(context.Background(),
		testFlow("panic", openURL("http://a.test"), openURL("http://b.test")), 0, 1)

	if f.Status != core.StatusErrored {
		t.Errorf("Status = %s, want errored", f.Status)
	}
	if f.Steps[0].ErrorCode != "step_panicked" || !strings.Contains(f.Steps[0].Error, "driver bug") {
		t.Errorf("step = %s %q", f.Steps[0].ErrorCode, f.Steps[0].Error)
	}
	if f.Steps[1].Status != core.StatusSkipped {
		t.Errorf("step 2 = %s", f.Steps[1].Status)
	}
	if driver.closes != 1 {
		t.Errorf("Close called %d times, want 1", driver.closes)
	}
}

func TestRunner_NilResult(t *testing.T) {
	driver := &fakeDriver{executeFunc: func(flow.Step) *core.CommandResult { return nil }}
	f := New(factoryFor(driver), quickConfig()).RunFlow(context.Background(), testFlow("nil", openURL("http://a.test")), 0, 1)

	if f.Steps[0].ErrorCode != "no_result" || f.Status != core.StatusErrored {
		t.Errorf("step = %s, flow = %s", f.Steps[0].ErrorCode, f.Status)
	}
}

func TestRunner_CancelledBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	factory := func(context.Context) (core.Driver, error) {
		calls++
		return &fakeDriver{}, nil
	}
	suite := New(factory, quickConfig()).Run(ctx, []*flow.Flow{testFlow("a", openURL("http://a.test"))})

	if calls != 0 {
		t.Errorf("factory called %d times", calls)
	}
	if suite.SkippedFlows != 1 || suite.Flows[0].Status != core.StatusSkipped {
		t.Errorf("flow status = %s", suite.Flows[0].Status)
	}
	if suite.Success() {
		t.Error("cancelled run is not a success")
	}
}

func TestRunner_CancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := &fakeDriver{}
	cfg := quickConfig()
	cfg.OnStepComplete = func(idx int, _ *core.StepResult) {
		if idx == 0 {
			cancel()
		}
	}

	f := New(factoryFor(driver), cfg).RunFlow(ctx, testFlow("c", openURL("http://a.test"), openURL("http://b.test"), openURL("http://c.test")), 0, 1)

	if f.Status != core.StatusSkipped {
		t.Errorf("Status = %s, want skipped", f.Status)
	}
	if f.PassedSteps != 1 || f.SkippedSteps != 2 {
		t.Errorf("steps = %d passed %d skipped", f.PassedSteps, f.SkippedSteps)
	}
	if driver.closes != 1 {
		t.Errorf("Close called %d times, want 1", driver.closes)
	}
}

func TestRunner_Callbacks(t *testing.T) {
	var events []string
	cfg := quickConfig()
	cfg.OnFlowStart = func(flowIdx, total int, name, file string) {
		events = append(events, "start:"+name+":"+file)
	}
	cfg.OnStepComplete = func(idx int, r *core.StepResult) {
		events = append(events, "step:"+r.Status.String())
	}
	cfg.OnFlowEnd = func(r *core.FlowResult) {
		events = append(events, "end:"+r.Status.String())
	}

	New(factoryFor(&fakeDriver{}), cfg).Run(context.Background(), []*flow.Flow{testFlow("cb", openURL("http://a.test"))})

	want := []string{"start:cb:cb.yaml", "step:passed", "end:passed"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestRunner_VariablesExpanded(t *testing.T) {
	driver := &fakeDriver{}
	cfg := quickConfig()
	cfg.Env = map[string]string{"YEAR": "2018"}

	step := openURL("${BASE_URL}/$YEAR/index.html")
	f := testFlow("vars", step)
	f.Config.Env = map[string]string{"BASE_URL": "http://www.barcampbrno.cz", "YEAR": "2017"}

	res := New(factoryFor(driver), cfg).RunFlow(context.Background(), f, 0, 1)

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s: %s", res.Status, res.Error)
	}
	got := driver.executed[0].(*flow.OpenURLStep).URL
	if got != "http://www.barcampbrno.cz/2018/index.html" {
		t.Errorf("URL = %q", got)
	}
	if step.URL != "${BASE_URL}/$YEAR/index.html" {
		t.Errorf("parsed step was modified: %q", step.URL)
	}
	if res.Steps[0].Description != "openUrl: http://www.barcampbrno.cz/2018/index.html" {
		t.Errorf("Description = %q", res.Steps[0].Description)
	}
}

func TestRunner_UndefinedVariable(t *testing.T) {
	driver := &fakeDriver{}
	res := New(factoryFor(driver), quickConfig()).RunFlow(context.Background(), testFlow("undef", openURL("${NOPE_NOT_SET}/x")), 0, 1)

	if res.Steps[0].ErrorCode != "invalid_step" || res.Status != core.StatusErrored {
		t.Errorf("step = %s, flow = %s", res.Steps[0].ErrorCode, res.Status)
	}
	if len(driver.executed) != 0 {
		t.Error("driver should not see a step with unexpanded variables")
	}
}

func TestRunner_FailureScreenshot(t *testing.T) {
	dir := t.TempDir()
	driver := &fakeDriver{
		executeFunc: func(step flow.Step) *core.CommandResult {
			return core.Failure(core.ErrElementNotFound, "not found")
		},
	}
	cfg := quickConfig()
	cfg.OutputDir = dir
	cfg.Artifacts = core.DefaultArtifactConfig()

	f := New(factoryFor(driver), cfg).RunFlow(context.Background(), testFlow("shot", openURL("http://a.test")), 2, 3)

	att := f.Steps[0].Attachments
	if len(att) != 1 || att[0].Path != "assets/flow-002-step-01-failed.png" {
		t.Fatalf("Attachments = %+v", att)
	}
	if _, err := os.Stat(filepath.Join(dir, "assets", "flow-002-step-01-failed.png")); err != nil {
		t.Errorf("screenshot not written: %v", err)
	}
}

// sourceDriver adds page source to fakeDriver.
type sourceDriver struct {
	*fakeDriver
}

func (d *sourceDriver) PageSource() (string, error) {
	return "<html><head><title>Program</title></head></html>", nil
}

func TestRunner_FailurePageSource(t *testing.T) {
	dir := t.TempDir()
	driver := &sourceDriver{&fakeDriver{
		executeFunc: func(step flow.Step) *core.CommandResult {
			if _, ok := step.(*flow.AssertTitleStep); ok {
				return core.Failure(core.ErrTitleMismatch, "title is \"Program\"")
			}
			return &core.CommandResult{Success: true}
		},
	}}
	cfg := quickConfig()
	cfg.OutputDir = dir
	cfg.Artifacts = core.DefaultArtifactConfig()
	cfg.Artifacts.CaptureOnSuccess = true

	f := New(factoryFor(driver), cfg).RunFlow(context.Background(), testFlow("src", openURL("http://a.test"), assertTitle("Barcamp Brno 2018")), 1, 2)

	if f.Status != core.StatusFailed {
		t.Fatalf("Status = %s", f.Status)
	}
	if n := len(f.Steps[0].Attachments); n != 1 {
		t.Errorf("passed step should only get a screenshot, got %d attachments", n)
	}

	att := f.Steps[1].Attachments
	if len(att) != 2 {
		t.Fatalf("Attachments = %+v", att)
	}
	src := att[1]
	if src.Name != core.AttachmentSource || src.ContentType != core.ContentTypeHTML || src.Path != "assets/flow-001-step-02-failed.html" {
		t.Errorf("page source attachment = %+v", src)
	}
	data, err := os.ReadFile(filepath.Join(dir, "assets", "flow-001-step-02-failed.html"))
	if err != nil {
		t.Fatalf("page source not written: %v", err)
	}
	if !strings.Contains(string(data), "<title>Program</title>") {
		t.Errorf("page source = %q", data)
	}
}

func TestRunner_TakeScreenshotStep(t *testing.T) {
	dir := t.TempDir()
	driver := &fakeDriver{
		executeFunc: func(step flow.Step) *core.CommandResult {
			return &core.CommandResult{Success: true, Data: []byte("png-bytes")}
		},
	}
	cfg := quickConfig()
	cfg.OutputDir = dir

	step := &flow.TakeScreenshotStep{BaseStep: flow.BaseStep{StepType: flow.StepTakeScreenshot}, Path: "programme"}
	f := New(factoryFor(driver), cfg).RunFlow(context.Background(), testFlow("ts", step), 0, 1)

	if f.Status != core.StatusPassed {
		t.Fatalf("Status = %s: %s", f.Status, f.Error)
	}
	if f.Steps[0].Data != "assets/programme.png" {
		t.Errorf("Data = %v", f.Steps[0].Data)
	}
	data, err := os.ReadFile(filepath.Join(dir, "assets", "programme.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Errorf("asset = %q, %v", data, err)
	}
}

func TestRunner_AssertTrue(t *testing.T) {
	driver := &fakeDriver{}
	pass := &flow.AssertTrueStep{BaseStep: flow.BaseStep{StepType: flow.StepAssertTrue}, Script: "title.indexOf('Barcamp') === 0"}
	fail := &flow.AssertTrueStep{BaseStep: flow.BaseStep{StepType: flow.StepAssertTrue}, Script: "url.endsWith('program.html')"}

	f := New(factoryFor(driver), quickConfig()).RunFlow(context.Background(), testFlow("js", pass, fail), 0, 1)

	if f.Steps[0].Status != core.StatusPassed || f.Steps[0].ExecutedBy != core.ExecutedByRunner {
		t.Errorf("step 1 = %s by %s", f.Steps[0].Status, f.Steps[0].ExecutedBy)
	}
	if f.Steps[1].Status != core.StatusFailed || f.Steps[1].ErrorCode != "condition_not_met" {
		t.Errorf("step 2 = %s %s", f.Steps[1].Status, f.Steps[1].ErrorCode)
	}
	if len(driver.executed) != 0 {
		t.Error("assertTrue must not go through Execute")
	}
}
