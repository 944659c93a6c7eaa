// Package webdrivertest provides an in-memory W3C WebDriver server for tests.
//
// The server models a browser with a fixed set of pages. Navigating (or clicking an
// element with an Href) replaces the current page and invalidates every element
// reference handed out before, so clicks on old references fail with
// "stale element reference" the way Safari does.
package webdrivertest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// PNG is the screenshot payload returned by the server.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Rect is an element rectangle in viewport coordinates.
type Rect struct {
	X, Y, Width, Height int
}

// Element is a locatable node on a page. Locator is matched verbatim against the
// "value" of find requests, whatever the strategy.
type Element struct {
	Locator string
	Rect    Rect
	Text    string
	Href    string // navigated to on click; empty means the click stays on the page
}

// Page is a document served at URL.
type Page struct {
	URL      string
	Title    string
	Elements []Element
}

type elementRef struct {
	generation int
	elem       Element
}

// Server is a fake WebDriver endpoint. Exported fields may be set before the first request.
type Server struct {
	*httptest.Server

	// ScreenWidth and ScreenHeight are reported by GET /window/rect; zero height makes
	// the endpoint return an error.
	ScreenWidth  int
	ScreenHeight int
	// FailSession makes POST /session fail with "session not created".
	FailSession bool
	// LoadingPolls is how many document.readyState checks report "loading" after each navigation.
	LoadingPolls int

	mu          sync.Mutex
	pages       map[string]Page
	current     string
	generation  int
	loadingLeft int
	sessionID   string
	nextSession int
	nextElement int
	created     int
	deleted     int
	elements    map[string]elementRef
	calls       []string
	actions     [][]interface{}
	lastCaps    map[string]interface{}
}

// NewServer starts a server serving pages.
func NewServer(pages ...Page) *Server {
	s := &Server{
		ScreenWidth:  375,
		ScreenHeight: 812,
		pages:        make(map[string]Page),
		elements:     make(map[string]elementRef),
	}
	for _, p := range pages {
		s.pages[p.URL] = p
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Calls returns the requests received so far as "METHOD /route" strings, with the
// session and element ids removed (e.g. "POST /element/click").
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// SessionsCreated returns how many sessions were created.
func (s *Server) SessionsCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// SessionsDeleted returns how many sessions were deleted.
func (s *Server) SessionsDeleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

// CurrentURL returns the URL of the page the fake browser is on.
func (s *Server) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Actions returns the action sequences received by POST /actions, in order.
func (s *Server) Actions() [][]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]interface{}, len(s.actions))
	copy(out, s.actions)
	return out
}

// Capabilities returns the alwaysMatch capabilities of the last session request.
func (s *Server) Capabilities() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCaps
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "wd" && parts[1] == "hub" {
		parts = parts[2:]
	}
	if len(parts) == 0 || parts[0] != "session" {
		writeError(w, http.StatusNotFound, "unknown command", r.URL.Path)
		return
	}

	if len(parts) == 1 {
		s.calls = append(s.calls, r.Method+" /session")
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "unknown method", r.Method)
			return
		}
		s.createSession(w, body)
		return
	}

	if parts[1] != s.sessionID || s.sessionID == "" {
		s.calls = append(s.calls, r.Method+" /session/?")
		writeError(w, http.StatusNotFound, "invalid session id", parts[1])
		return
	}

	rest := parts[2:]
	s.calls = append(s.calls, r.Method+" "+route(rest))

	switch {
	case len(rest) == 0 && r.Method == http.MethodDelete:
		s.deleted++
		s.sessionID = ""
		writeValue(w, nil)

	case matches(rest, "window", "rect"):
		if s.ScreenHeight == 0 {
			writeError(w, http.StatusNotFound, "unknown command", "window/rect")
			return
		}
		writeValue(w, map[string]interface{}{"x": 0, "y": 0, "width": s.ScreenWidth, "height": s.ScreenHeight})

	case matches(rest, "timeouts"):
		writeValue(w, nil)

	case matches(rest, "url") && r.Method == http.MethodPost:
		url, _ := body["url"].(string)
		s.navigate(url)
		writeValue(w, nil)

	case matches(rest, "url"):
		writeValue(w, s.current)

	case matches(rest, "title"):
		writeValue(w, s.pages[s.current].Title)

	case matches(rest, "execute", "sync"):
		script, _ := body["script"].(string)
		if strings.Contains(script, "readyState") {
			if s.loadingLeft > 0 {
				s.loadingLeft--
				writeValue(w, "loading")
				return
			}
			writeValue(w, "complete")
			return
		}
		writeValue(w, nil)

	case matches(rest, "element") && r.Method == http.MethodPost:
		value, _ := body["value"].(string)
		elem, ok := s.find(value)
		if !ok {
			writeError(w, http.StatusNotFound, "no such element", "Unable to locate element: "+value)
			return
		}
		writeValue(w, map[string]interface{}{"element-6066-11e4-a52e-4f735466cecf": s.register(elem)})

	case matches(rest, "elements"):
		value, _ := body["value"].(string)
		var out []interface{}
		if elem, ok := s.find(value); ok {
			out = append(out, map[string]interface{}{"element-6066-11e4-a52e-4f735466cecf": s.register(elem)})
		}
		if out == nil {
			out = []interface{}{}
		}
		writeValue(w, out)

	case len(rest) == 3 && rest[0] == "element":
		s.elementCommand(w, r.Method, rest[1], rest[2])

	case matches(rest, "actions") && r.Method == http.MethodPost:
		seq, _ := body["actions"].([]interface{})
		s.actions = append(s.actions, seq)
		writeValue(w, nil)

	case matches(rest, "actions"):
		writeValue(w, nil)

	case matches(rest, "screenshot"):
		writeValue(w, base64.StdEncoding.EncodeToString(PNG))

	case matches(rest, "source"):
		writeValue(w, fmt.Sprintf("<html><head><title>%s</title></head></html>", s.pages[s.current].Title))

	default:
		writeError(w, http.StatusNotFound, "unknown command", r.URL.Path)
	}
}

func (s *Server) createSession(w http.ResponseWriter, body map[string]interface{}) {
	if s.FailSession {
		writeError(w, http.StatusInternalServerError, "session not created", "Could not find a connected device")
		return
	}
	caps := map[string]interface{}{}
	if c, ok := body["capabilities"].(map[string]interface{}); ok {
		if am, ok := c["alwaysMatch"].(map[string]interface{}); ok {
			caps = am
		}
	}
	s.lastCaps = caps
	s.nextSession++
	s.created++
	s.sessionID = fmt.Sprintf("session-%d", s.nextSession)
	writeValue(w, map[string]interface{}{
		"sessionId":    s.sessionID,
		"capabilities": caps,
	})
}

func (s *Server) elementCommand(w http.ResponseWriter, method, id, command string) {
	ref, ok := s.elements[id]
	if !ok {
		writeError(w, http.StatusNotFound, "no such element", id)
		return
	}
	if ref.generation != s.generation {
		writeError(w, http.StatusNotFound, "stale element reference", "The element reference of "+id+" is stale")
		return
	}

	switch {
	case command == "rect":
		writeValue(w, map[string]interface{}{
			"x": ref.elem.Rect.X, "y": ref.elem.Rect.Y,
			"width": ref.elem.Rect.Width, "height": ref.elem.Rect.Height,
		})
	case command == "click" && method == http.MethodPost:
		if ref.elem.Href != "" {
			s.navigate(ref.elem.Href)
		}
		writeValue(w, nil)
	case command == "displayed":
		writeValue(w, true)
	case command == "text":
		writeValue(w, ref.elem.Text)
	default:
		writeError(w, http.StatusNotFound, "unknown command", command)
	}
}

func (s *Server) navigate(url string) {
	s.current = url
	s.generation++
	s.loadingLeft = s.LoadingPolls
}

func (s *Server) find(locator string) (Element, bool) {
	for _, e := range s.pages[s.current].Elements {
		if e.Locator == locator {
			return e, true
		}
	}
	return Element{}, false
}

func (s *Server) register(elem Element) string {
	s.nextElement++
	id := fmt.Sprintf("el-%d", s.nextElement)
	s.elements[id] = elementRef{generation: s.generation, elem: elem}
	return id
}

func route(rest []string) string {
	if len(rest) == 0 {
		return "/session"
	}
	if len(rest) == 3 && rest[0] == "element" {
		return "/element/" + rest[2]
	}
	return "/" + strings.Join(rest, "/")
}

func matches(rest []string, want ...string) bool {
	if len(rest) != len(want) {
		return false
	}
	for i := range want {
		if rest[i] != want[i] {
			return false
		}
	}
	return true
}

func writeValue(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": value})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{"error": code, "message": message},
	})
}
