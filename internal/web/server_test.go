package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"relay-service/internal/logger"
	"relay-service/internal/types"
)

// Mock status source
type fakeSource struct {
	mu sync.Mutex
	st types.Status
}

func (f *fakeSource) Status() types.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.Clone()
}

func (f *fakeSource) set(st types.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st = st
}

func connectedStatus() types.Status {
	return types.Status{
		State:          types.StateConnected,
		Connected:      true,
		ControllerName: "Wireless Controller",
		DevicePath:     "/dev/input/event4",
		Address:        "AA:BB:CC:DD:EE:FF",
		Kind:           "gamepad",
		Relays:         []bool{true, false, false, true},
		Since:          time.Now(),
	}
}

func newTestServer(src StatusSource) *Server {
	return NewServer(":0", "1.2.3", src, logger.NewLogger(nil, logger.LogLevelError))
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(&fakeSource{st: connectedStatus()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"1.2.3",
		"Wireless Controller (/dev/input/event4) [AA:BB:CC:DD:EE:FF]",
		"Relay 4",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page is missing %q", want)
		}
	}
	for _, raw := range []string{"\n    <", "body { font-family", "function () {"} {
		if strings.Contains(body, raw) {
			t.Errorf("page was not minified, still contains %q", raw)
		}
	}
}

func TestIndexPageWithoutDevice(t *testing.T) {
	s := newTestServer(&fakeSource{st: types.Status{State: types.StateDiscovering, Relays: make([]bool, 4)}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "Not found") {
		t.Error("page must say no controller was found")
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(&fakeSource{st: connectedStatus()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var st types.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding status failed: %v", err)
	}
	if st.State != types.StateConnected || !st.Connected || len(st.Relays) != 4 || !st.Relays[3] {
		t.Errorf("status = %+v", st)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(&fakeSource{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status code = %d", rec.Code)
	}
}

func TestWebSocketStreamsChanges(t *testing.T) {
	src := &fakeSource{st: types.Status{State: types.StateDiscovering, Relays: make([]bool, 2)}}
	s := newTestServer(src)
	s.pollInterval = 10 * time.Millisecond

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var st types.Status
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("reading first snapshot failed: %v", err)
	}
	if st.State != types.StateDiscovering {
		t.Errorf("first snapshot state = %s", st.State)
	}

	src.set(connectedStatus())
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("reading update failed: %v", err)
	}
	if st.State != types.StateConnected || st.ControllerName != "Wireless Controller" {
		t.Errorf("update = %+v", st)
	}

	conn.Close()
	s.cancel()
	s.wg.Wait()
}
