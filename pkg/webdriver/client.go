// Package webdriver is a small W3C WebDriver HTTP client for remote browser sessions
// served by Appium (XCUITest/Safari) or any other WebDriver endpoint.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/safari-runner/pkg/logger"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Locator strategies understood by Safari WebDriver.
const (
	ByXPath       = "xpath"
	ByCSSSelector = "css selector"
	ByLinkText    = "link text"
)

// disconnectTimeout bounds DELETE /session, which still runs after the run
// context is cancelled.
const disconnectTimeout = 30 * time.Second

// Client handles HTTP communication with the remote automation server.
// A Client holds at most one session at a time.
type Client struct {
	ctx       context.Context // cancels in-flight requests
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // ios, android
	browser   string
	screenW   int
	screenH   int
}

// NewClient creates a new WebDriver client for serverURL (e.g. http://127.0.0.1:1234/wd/hub).
func NewClient(serverURL string) *Client {
	return NewClientWithContext(context.Background(), serverURL)
}

// NewClientWithContext creates a client whose requests are aborted when ctx is
// done. Disconnect is the exception: it gets its own timeout so the session is
// still deleted after a cancelled run.
func NewClientWithContext(ctx context.Context, serverURL string) *Client {
	return &Client{
		ctx:       ctx,
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // session creation boots Safari on the device
		},
	}
}

// NewSessionRequest returns the POST /session body for capabilities.
// Appium 1.x servers driving iOS 12 still read desiredCapabilities.
func NewSessionRequest(capabilities map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
		"desiredCapabilities": capabilities,
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	resp, err := c.post("/session", NewSessionRequest(capabilities))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, _ := resp["value"].(map[string]interface{})

	// W3C: {"value": {"sessionId": ..., "capabilities": {...}}}
	// JSONWP: {"sessionId": ..., "value": {...caps}}
	var caps map[string]interface{}
	if id, ok := value["sessionId"].(string); ok {
		c.sessionID = id
		caps, _ = value["capabilities"].(map[string]interface{})
	} else if id, ok := resp["sessionId"].(string); ok {
		c.sessionID = id
		caps = value
	}
	if c.sessionID == "" {
		return &Error{Code: ErrCodeSessionNotCreated, Message: "no session ID in response"}
	}

	if platform, ok := caps["platformName"].(string); ok {
		c.platform = strings.ToLower(platform)
	} else if platform, ok := capabilities["platformName"].(string); ok {
		c.platform = strings.ToLower(platform)
	}
	if browser, ok := caps["browserName"].(string); ok {
		c.browser = browser
	} else if browser, ok := capabilities["browserName"].(string); ok {
		c.browser = browser
	}

	c.fetchScreenSize()
	logger.Info("Session %s created (%s/%s, screen %dx%d)", c.sessionID, c.platform, c.browser, c.screenW, c.screenH)
	return nil
}

// Disconnect closes the session. It is a no-op when no session is open.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), disconnectTimeout)
	defer cancel()
	_, err := c.request(ctx, "DELETE", c.sessionPath(), nil)
	logger.Info("Session %s deleted", c.sessionID)
	c.sessionID = ""
	return err
}

// SessionID returns the current session id, empty when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Platform returns the platform (ios/android).
func (c *Client) Platform() string {
	return c.platform
}

// Browser returns the browser name reported by the server.
func (c *Client) Browser() string {
	return c.browser
}

// ScreenSize returns the viewport dimensions reported at session start.
// Both values are zero when the server did not report a window rect.
func (c *Client) ScreenSize() (int, int) {
	return c.screenW, c.screenH
}

func (c *Client) fetchScreenSize() {
	resp, err := c.get(c.sessionPath() + "/window/rect")
	if err != nil {
		logger.Debug("window/rect unavailable: %v", err)
		return
	}
	if value, ok := resp["value"].(map[string]interface{}); ok {
		if w, ok := value["width"].(float64); ok {
			c.screenW = int(w)
		}
		if h, ok := value["height"].(float64); ok {
			c.screenH = int(h)
		}
	}
}

// Navigation

// NavigateTo loads url in the current browsing context and blocks until the
// server reports the navigation as done.
func (c *Client) NavigateTo(url string) error {
	_, err := c.post(c.sessionPath()+"/url", map[string]interface{}{
		"url": url,
	})
	return err
}

// CurrentURL returns the URL of the current page.
func (c *Client) CurrentURL() (string, error) {
	resp, err := c.get(c.sessionPath() + "/url")
	if err != nil {
		return "", err
	}
	url, _ := resp["value"].(string)
	return url, nil
}

// Title returns the document title of the current page.
func (c *Client) Title() (string, error) {
	resp, err := c.get(c.sessionPath() + "/title")
	if err != nil {
		return "", err
	}
	title, _ := resp["value"].(string)
	return title, nil
}

// ExecuteScript runs a synchronous script in the page and returns its value.
func (c *Client) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	resp, err := c.post(c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": script,
		"args":   args,
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// ReadyState returns document.readyState of the current page.
func (c *Client) ReadyState() (string, error) {
	value, err := c.ExecuteScript("return document.readyState;")
	if err != nil {
		return "", err
	}
	state, _ := value.(string)
	return state, nil
}

// Element Operations

// FindElement finds a single element and returns its server-side reference.
func (c *Client) FindElement(strategy, value string) (string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &Error{Code: ErrCodeNoSuchElement, Message: "empty element response"}
	}

	id := extractElementID(elemValue)
	if id == "" {
		return "", &Error{Code: ErrCodeNoSuchElement, Message: fmt.Sprintf("no element for %s=%s", strategy, value)}
	}
	return id, nil
}

// FindElements finds all elements matching the locator.
func (c *Client) FindElements(strategy, value string) ([]string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/elements", body)
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementRect returns an element's position and size in viewport coordinates.
func (c *Client) GetElementRect(elementID string) (x, y, w, h int, err error) {
	resp, err := c.get(c.elementPath(elementID) + "/rect")
	if err != nil {
		return 0, 0, 0, 0, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return int(xf), int(yf), int(wf), int(hf), nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// Actions

// PerformActions submits input source action sequences as one unit.
func (c *Client) PerformActions(sequences []map[string]interface{}) error {
	_, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{"actions": sequences})
	return err
}

// ReleaseActions releases all pressed keys and pointers.
func (c *Client) ReleaseActions() error {
	_, err := c.delete(c.sessionPath() + "/actions")
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	resp, err := c.get(c.sessionPath() + "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source.
func (c *Client) Source() (string, error) {
	resp, err := c.get(c.sessionPath() + "/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Timeouts

// SetTimeouts sets the page load and implicit wait timeouts.
// A zero duration leaves that timeout unchanged.
func (c *Client) SetTimeouts(pageLoad, implicit time.Duration) error {
	body := map[string]interface{}{}
	if pageLoad > 0 {
		body["pageLoad"] = pageLoad.Milliseconds()
	}
	if implicit > 0 {
		body["implicit"] = implicit.Milliseconds()
	}
	if len(body) == 0 {
		return nil
	}
	_, err := c.post(c.sessionPath()+"/timeouts", body)
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request(c.ctx, "GET", path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	return c.request(c.ctx, "POST", path, body)
}

func (c *Client) delete(path string) (map[string]interface{}, error) {
	return c.request(c.ctx, "DELETE", path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Debug("%s %s failed: %v", method, path, err)
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("nil response from server")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logger.Debug("%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &Error{Code: ErrCodeUnknown, Message: strings.TrimSpace(string(respBody)), HTTPStatus: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if werr := parseError(result, resp.StatusCode); werr != nil {
		return result, werr
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
