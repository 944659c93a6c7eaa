package executor

import (
	"context"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/core/mocks"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
)

// stepType matches a flow.Step by its type.
type stepType flow.StepType

func (m stepType) Matches(x any) bool {
	s, ok := x.(flow.Step)
	return ok && s.Type() == flow.StepType(m)
}

func (m stepType) String() string { return "is a " + string(m) + " step" }

func TestFlowRunner_DriverCallOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := mocks.NewMockDriver(ctrl)

	find := &flow.FindElementStep{
		BaseStep: flow.BaseStep{StepType: flow.StepFindElement},
		Selector: flow.Selector{XPath: "//a[@href='/2018/program.html' and @class]"},
		As:       "program",
	}
	scroll := &flow.ScrollToStep{BaseStep: flow.BaseStep{StepType: flow.StepScrollTo}, Element: "program"}

	gomock.InOrder(
		driver.EXPECT().GetPlatformInfo().Return(&core.PlatformInfo{Browser: "safari"}),
		driver.EXPECT().Execute(stepType(flow.StepOpenURL)).Return(core.Success("navigated")),
		driver.EXPECT().Execute(stepType(flow.StepFindElement)).Return(core.Success("found")),
		driver.EXPECT().Execute(stepType(flow.StepScrollTo)).Return(core.Success("scrolled")),
		driver.EXPECT().Execute(stepType(flow.StepClick)).Return(core.Success("clicked")),
		driver.EXPECT().Close().Return(nil).Times(1),
	)

	f := New(factoryFor(driver), quickConfig()).RunFlow(context.Background(),
		testFlow("order", openURL("http://a.test"), find, scroll, click("program")), 0, 1)

	if f.Status != core.StatusPassed {
		t.Errorf("Status = %s: %s", f.Status, f.Error)
	}
}

func TestFlowRunner_MissingElementStopsScrollAndClick(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := mocks.NewMockDriver(ctrl)

	find := &flow.FindElementStep{
		BaseStep: flow.BaseStep{StepType: flow.StepFindElement},
		Selector: flow.Selector{XPath: "//a[@href='/2018/prednaska/6203620f.html']"},
		As:       "talk",
	}
	scroll := &flow.ScrollToStep{BaseStep: flow.BaseStep{StepType: flow.StepScrollTo}, Element: "talk"}

	notFound := core.Failure(core.ErrElementNotFound.WithMessage("no element matches //a[@href='/2018/prednaska/6203620f.html']"), "not found")

	gomock.InOrder(
		driver.EXPECT().GetPlatformInfo().Return(nil),
		driver.EXPECT().Execute(stepType(flow.StepFindElement)).Return(notFound),
		driver.EXPECT().Screenshot().Return([]byte("png"), nil),
		driver.EXPECT().Close().Return(nil).Times(1),
	)
	// scrollTo and click must never reach the driver
	driver.EXPECT().Execute(stepType(flow.StepScrollTo)).Times(0)
	driver.EXPECT().Execute(stepType(flow.StepClick)).Times(0)

	cfg := quickConfig()
	cfg.Artifacts = core.DefaultArtifactConfig()

	f := New(factoryFor(driver), cfg).RunFlow(context.Background(),
		testFlow("missing", find, scroll, click("talk")), 0, 1)

	if f.Status != core.StatusFailed {
		t.Errorf("Status = %s, want failed", f.Status)
	}
	if f.Steps[0].ErrorCode != "element_not_found" {
		t.Errorf("ErrorCode = %s", f.Steps[0].ErrorCode)
	}
	if len(f.Steps[0].Attachments) != 1 {
		t.Errorf("Attachments = %+v", f.Steps[0].Attachments)
	}
	if f.Steps[1].Status != core.StatusSkipped || f.Steps[2].Status != core.StatusSkipped {
		t.Errorf("later steps = %s, %s", f.Steps[1].Status, f.Steps[2].Status)
	}
}
