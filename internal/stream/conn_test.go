package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsURL rewrites an httptest server URL into a ws:// URL.
func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestConn_DeliversJSONMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"state":"espresso"}`))
		// Hold the connection open until the client leaves.
		_, _, _ = ws.ReadMessage()
	}))
	defer server.Close()

	got := make(chan []byte, 1)
	registry := NewRegistry()
	conn := registry.Connect(wsURL(server), Callbacks{
		OnMessage: func(payload []byte) {
			select {
			case got <- payload:
			default:
			}
		},
	})
	defer conn.Close()

	select {
	case payload := <-got:
		if string(payload) != `{"state":"espresso"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestConn_RawFallbackForInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_, _, _ = ws.ReadMessage()
	}))
	defer server.Close()

	raw := make(chan wire.RawFrame, 1)
	typed := make(chan struct{}, 1)
	registry := NewRegistry()
	conn := registry.Connect(wsURL(server), Callbacks{
		OnMessage: func([]byte) { typed <- struct{}{} },
		OnRaw: func(frame wire.RawFrame) {
			select {
			case raw <- frame:
			default:
			}
		},
	})
	defer conn.Close()

	select {
	case frame := <-raw:
		if string(frame.Raw) != "not json" {
			t.Errorf("Raw = %s", frame.Raw)
		}
		if frame.Timestamp.IsZero() {
			t.Error("fallback frame must carry a timestamp")
		}
	case <-typed:
		t.Fatal("invalid JSON must not be delivered as a typed message")
	case <-time.After(3 * time.Second):
		t.Fatal("no fallback frame delivered")
	}
}

func TestConn_ExplicitCloseNoReconnect(t *testing.T) {
	var connections int32
	opened := make(chan struct{}, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&connections, 1)
		opened <- struct{}{}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_, _, _ = ws.ReadMessage()
	}))
	defer server.Close()

	var closes int32
	closed := make(chan struct{}, 2)
	registry := NewRegistry()
	conn := registry.Connect(wsURL(server), Callbacks{
		OnClose: func() {
			atomic.AddInt32(&closes, 1)
			closed <- struct{}{}
		},
	})

	waitFor(t, opened, 3*time.Second, "first connection")
	conn.Close()
	conn.Close() // idempotent
	waitFor(t, closed, 3*time.Second, "close callback")

	// Give a would-be reconnect time to fire (first backoff is 1s).
	time.Sleep(1500 * time.Millisecond)

	if n := atomic.LoadInt32(&connections); n != 1 {
		t.Errorf("connections = %d, want 1 (explicit close must not reconnect)", n)
	}
	if n := atomic.LoadInt32(&closes); n != 1 {
		t.Errorf("close callbacks = %d, want exactly 1", n)
	}
	if registry.Len() != 0 {
		t.Errorf("registry.Len() = %d, want 0", registry.Len())
	}
}

func TestConn_ReconnectsAfterAbnormalClose(t *testing.T) {
	var connections int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&connections, 1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection without a close handshake.
			_ = ws.Close()
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"after":"reconnect"}`))
		_, _, _ = ws.ReadMessage()
	}))
	defer server.Close()

	got := make(chan []byte, 1)
	errs := make(chan struct{}, 8)
	registry := NewRegistry()
	conn := registry.Connect(wsURL(server), Callbacks{
		OnMessage: func(payload []byte) {
			select {
			case got <- payload:
			default:
			}
		},
		OnError: func(err *apierr.Error) { errs <- struct{}{} },
	})
	defer conn.Close()

	select {
	case payload := <-got:
		if string(payload) != `{"after":"reconnect"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message after reconnect (backoff should be ~1s)")
	}

	if n := atomic.LoadInt32(&connections); n < 2 {
		t.Errorf("connections = %d, want at least 2", n)
	}
	select {
	case <-errs:
	default:
		t.Error("abnormal close must notify the error callback")
	}
}

func TestConn_FatalCloseCodeNoReconnect(t *testing.T) {
	var connections int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&connections, 1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "fatal"), deadline)
	}))
	defer server.Close()

	closed := make(chan struct{}, 1)
	registry := NewRegistry()
	conn := registry.Connect(wsURL(server), Callbacks{
		OnClose: func() { closed <- struct{}{} },
	})
	defer conn.Close()

	waitFor(t, closed, 3*time.Second, "terminal close after 1011")

	time.Sleep(1500 * time.Millisecond)
	if n := atomic.LoadInt32(&connections); n != 1 {
		t.Errorf("connections = %d, want 1 (1011 is fatal, no retry)", n)
	}
	if conn.State() != Errored {
		t.Errorf("State = %v, want error", conn.State())
	}
}

func TestConn_ReconnectGivesUpAfterBudget(t *testing.T) {
	closed := make(chan struct{}, 1)
	c := &Conn{
		url:   "ws://example.invalid/ws/v1/de1/snapshot",
		state: Connecting,
		cb: Callbacks{
			OnClose: func() { closed <- struct{}{} },
		},
	}

	// Attempts 1..5 arm a timer; stop it immediately so nothing dials.
	for i := 0; i < MaxReconnectAttempts; i++ {
		c.mu.Lock()
		c.scheduleReconnectLocked()
		if c.reconnectTimer != nil {
			c.reconnectTimer.Stop()
			c.reconnectTimer = nil
		}
		c.mu.Unlock()
	}
	if c.State() != Connecting {
		t.Fatalf("State = %v, want connecting while attempts remain", c.State())
	}

	// The 6th failure exhausts the budget.
	c.mu.Lock()
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	waitFor(t, closed, 3*time.Second, "terminal close after exhausted budget")
	if c.State() != Errored {
		t.Errorf("State = %v, want error", c.State())
	}
}

func TestRegistry_DeduplicatesByURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_, _, _ = ws.ReadMessage()
	}))
	defer server.Close()

	registry := NewRegistry()
	a := registry.Connect(wsURL(server), Callbacks{})
	b := registry.Connect(wsURL(server), Callbacks{})
	defer registry.CloseAll()

	if a != b {
		t.Error("second Connect to the same URL must return the existing connection")
	}
	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1", registry.Len())
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_, _, _ = ws.ReadMessage()
	}))
	defer server.Close()

	registry := NewRegistry()
	registry.Connect(wsURL(server)+"/a", Callbacks{})
	registry.Connect(wsURL(server)+"/b", Callbacks{})

	registry.CloseAll()

	if registry.Len() != 0 {
		t.Errorf("registry.Len() = %d after CloseAll, want 0", registry.Len())
	}
}
