package safari

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/webdriver/webdrivertest"
)

const (
	homeURL    = "http://barcamp.test/2018/index.html"
	programURL = "http://barcamp.test/2018/program.html"
	programXP  = "//a[@href='/2018/program.html' and @class]"
)

func newServer() *webdrivertest.Server {
	return webdrivertest.NewServer(
		webdrivertest.Page{
			URL:   homeURL,
			Title: "Barcamp Brno 2018",
			Elements: []webdrivertest.Element{
				{Locator: programXP, Rect: webdrivertest.Rect{X: 20, Y: 1480, Width: 120, Height: 30}, Href: programURL, Text: "Program"},
			},
		},
		webdrivertest.Page{URL: programURL, Title: "Program"},
	)
}

func openDriver(t *testing.T, srv *webdrivertest.Server, screenHeight int) *Driver {
	t.Helper()
	d, err := Open(context.Background(), Options{
		ServerURL: srv.URL + "/wd/hub",
		Capabilities: map[string]interface{}{
			"browserName":     "safari",
			"platformName":    "iOS",
			"deviceName":      "iPhone XS",
			"platformVersion": "12.1",
		},
		ScreenHeight: screenHeight,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func findProgram(t *testing.T, d *Driver) {
	t.Helper()
	res := d.Execute(&flow.FindElementStep{Selector: flow.Selector{XPath: programXP}, As: "program"})
	require.True(t, res.Success, res.Message)
}

// touchActions returns the pointer actions of the i-th POST /actions request.
func touchActions(t *testing.T, srv *webdrivertest.Server, i int) []interface{} {
	t.Helper()
	all := srv.Actions()
	require.Greater(t, len(all), i)
	seq, ok := all[i][0].(map[string]interface{})
	require.True(t, ok)
	params, _ := seq["parameters"].(map[string]interface{})
	assert.Equal(t, "touch", params["pointerType"])
	actions, ok := seq["actions"].([]interface{})
	require.True(t, ok)
	return actions
}

func TestOpen_SendsCapabilities(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	d := openDriver(t, srv, 0)

	caps := srv.Capabilities()
	assert.Equal(t, "safari", caps["browserName"])
	assert.Equal(t, "iPhone XS", caps["deviceName"])
	assert.Equal(t, "12.1", caps["platformVersion"])

	info := d.GetPlatformInfo()
	assert.Equal(t, "ios", info.Platform)
	assert.Equal(t, "safari", info.Browser)
	assert.Equal(t, "12.1", info.OSVersion)
	assert.Equal(t, "iPhone XS", info.DeviceName)
	assert.Equal(t, 812, info.ScreenHeight)
	assert.NotEmpty(t, info.SessionID)
}

func TestOpen_SessionNotCreated(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	srv.FailSession = true

	_, err := Open(context.Background(), Options{ServerURL: srv.URL, Capabilities: map[string]interface{}{"browserName": "safari"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionNotCreated))
	assert.Equal(t, 0, srv.SessionsCreated())
}

func TestOpen_ServerUnreachable(t *testing.T) {
	srv := newServer()
	url := srv.URL
	srv.Close()

	_, err := Open(context.Background(), Options{ServerURL: url, Capabilities: map[string]interface{}{"browserName": "safari"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionNotCreated))
}

func TestClose_Once(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	d := openDriver(t, srv, 0)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, srv.SessionsDeleted())
}

func TestOpenURLAndAssertTitle(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)

	res := d.Execute(&flow.OpenURLStep{URL: homeURL})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, homeURL, srv.CurrentURL())

	res = d.Execute(&flow.AssertTitleStep{Equals: "Barcamp Brno 2018"})
	assert.True(t, res.Success, res.Message)

	res = d.Execute(&flow.AssertTitleStep{Contains: "Brno"})
	assert.True(t, res.Success, res.Message)

	res = d.Execute(&flow.AssertTitleStep{Equals: "Barcamp Brno 2019"})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrTitleMismatch))
	assert.Contains(t, res.Message, `"Barcamp Brno 2018"`)

	res = d.Execute(&flow.OpenURLStep{})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrInvalidStep))
}

func TestFindElement(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)
	d.Execute(&flow.OpenURLStep{URL: homeURL})

	res := d.Execute(&flow.FindElementStep{Selector: flow.Selector{XPath: programXP}, As: "program"})
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Element)
	assert.Equal(t, "program", res.Element.Alias)
	assert.Equal(t, core.Bounds{X: 20, Y: 1480, Width: 120, Height: 30}, res.Element.Bounds)
	assert.True(t, res.Element.Visible)
	assert.Equal(t, "Program", res.Element.Text)

	res = d.Execute(&flow.FindElementStep{Selector: flow.Selector{XPath: "//a[@href='/nope']"}, As: "nope"})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrElementNotFound))

	res = d.Execute(&flow.FindElementStep{})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrInvalidStep))
}

func TestScrollTo_DefaultStartFromViewport(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)
	d.Execute(&flow.OpenURLStep{URL: homeURL})
	findProgram(t, d)

	offset := 200
	res := d.Execute(&flow.ScrollToStep{Element: "program", X: 0, Offset: &offset})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "press(0,203) move(0,1680) release")

	actions := touchActions(t, srv, 0)
	require.Len(t, actions, 4)
	press := actions[0].(map[string]interface{})
	assert.Equal(t, "pointerMove", press["type"])
	assert.Equal(t, float64(203), press["y"])
	assert.Equal(t, "pointerDown", actions[1].(map[string]interface{})["type"])
	move := actions[2].(map[string]interface{})
	assert.Equal(t, float64(1680), move["y"])
	assert.Equal(t, float64(500), move["duration"])
	assert.Equal(t, "pointerUp", actions[3].(map[string]interface{})["type"])
}

func TestScrollTo_FallbackScreenHeight(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	srv.ScreenHeight = 0 // window/rect unsupported

	d := openDriver(t, srv, 0)
	d.Execute(&flow.OpenURLStep{URL: homeURL})
	findProgram(t, d)

	res := d.Execute(&flow.ScrollToStep{Element: "program"})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "press(0,333)")
}

func TestScrollTo_ConfiguredScreenHeightWins(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	require.Equal(t, 812, srv.ScreenHeight)

	d := openDriver(t, srv, DefaultScreenHeight)
	d.Execute(&flow.OpenURLStep{URL: homeURL})
	findProgram(t, d)

	res := d.Execute(&flow.ScrollToStep{Element: "program"})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "press(0,333) move(0,1680) release")
}

func TestScrollTo_ShorthandUsesDefaultOffset(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)
	d.Execute(&flow.OpenURLStep{URL: homeURL})
	findProgram(t, d)

	f, err := flow.Parse([]byte("- scrollTo: program\n"), "shorthand.yaml")
	require.NoError(t, err)
	require.Len(t, f.Steps, 1)

	res := d.Execute(f.Steps[0])
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "move(0,1680)")

	move := touchActions(t, srv, 0)[2].(map[string]interface{})
	assert.Equal(t, float64(1480+flow.DefaultScrollOffset), move["y"])
}

func TestScrollTo_ExplicitStart(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 1000)
	d.Execute(&flow.OpenURLStep{URL: homeURL})
	findProgram(t, d)

	startY, offset := 600, -80
	res := d.Execute(&flow.ScrollToStep{Element: "program", X: 10, StartY: &startY, Offset: &offset, DurationMs: 250})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "press(10,600) move(10,1400) release")
}

func TestScrollTo_UnknownAlias(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)

	res := d.Execute(&flow.ScrollToStep{Element: "program"})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrUnknownElement))
	assert.Empty(t, srv.Actions())
}

func TestClick_NavigatesAndInvalidatesRefs(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)
	d.Execute(&flow.OpenURLStep{URL: homeURL})
	findProgram(t, d)

	res := d.Execute(&flow.ClickStep{Element: "program"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, programURL, srv.CurrentURL())

	// Same reference after navigation
	res = d.Execute(&flow.ClickStep{Element: "program"})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrStaleElement))

	res = d.Execute(&flow.ScrollToStep{Element: "program"})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrStaleElement))
}

func TestSwipe(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)

	res := d.Execute(&flow.SwipeStep{StartX: 100, StartY: 600, EndX: 100, EndY: 200})
	require.True(t, res.Success, res.Message)
	actions := touchActions(t, srv, 0)
	assert.Len(t, actions, 4)

	res = d.Execute(&flow.SwipeStep{StartX: -1, StartY: 0, EndX: 0, EndY: 0})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrInvalidStep))
}

func TestTakeScreenshot(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)

	res := d.Execute(&flow.TakeScreenshotStep{})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, webdrivertest.PNG, res.Data)

	data, err := d.Screenshot()
	require.NoError(t, err)
	assert.Equal(t, webdrivertest.PNG, data)
}

func TestUnsupportedStep(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)

	res := d.Execute(&flow.WaitUntilStep{BaseStep: flow.BaseStep{StepType: flow.StepWaitUntil}})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrInvalidStep))
	assert.Contains(t, res.Message, "waitUntil")
}

func TestGetStateAndVisibility(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	srv.LoadingPolls = 1
	d := openDriver(t, srv, 0)
	d.Execute(&flow.OpenURLStep{URL: homeURL})

	state := d.GetState()
	assert.Equal(t, "loading", state.ReadyState)
	assert.Equal(t, "Barcamp Brno 2018", state.Title)
	assert.Equal(t, homeURL, state.URL)
	assert.Equal(t, "complete", d.GetState().ReadyState)

	visible, err := d.ElementVisible(flow.Selector{XPath: programXP})
	require.NoError(t, err)
	assert.True(t, visible)

	visible, err = d.ElementVisible(flow.Selector{CSS: "a.missing"})
	require.NoError(t, err)
	assert.False(t, visible)

	_, err = d.ElementVisible(flow.Selector{})
	assert.Error(t, err)
}

func TestPageSource(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	d := openDriver(t, srv, 0)
	d.Execute(&flow.OpenURLStep{URL: homeURL})

	var _ core.PageSourceProvider = d
	src, err := d.PageSource()
	require.NoError(t, err)
	assert.Contains(t, src, "<title>Barcamp Brno 2018</title>")
	assert.Contains(t, srv.Calls(), "GET /source")
}
