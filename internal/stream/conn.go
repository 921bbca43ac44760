package stream

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/backoff"
	"github.com/muurk/r1ctl/internal/logging"
	"github.com/muurk/r1ctl/internal/wire"
)

const (
	// MaxReconnectAttempts bounds automatic reconnection after an
	// unexpected closure.
	MaxReconnectAttempts = 5

	// handshakeTimeout bounds the WebSocket upgrade.
	handshakeTimeout = 10 * time.Second
)

// State is the lifecycle state of a Conn.
type State int

const (
	Connecting State = iota
	Open
	Errored
	Closed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Errored:
		return "error"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}

// Callbacks are the upward-facing events of a Conn. Any field may be nil.
// No callback fires after Close has returned.
type Callbacks struct {
	// OnMessage receives each inbound frame that is valid JSON.
	OnMessage func(payload []byte)

	// OnRaw receives the fallback wrapper for frames that fail to parse.
	OnRaw func(frame wire.RawFrame)

	// OnError is notified of transport errors. An error does not by
	// itself close the connection.
	OnError func(err *apierr.Error)

	// OnClose fires exactly once, when the connection is terminally done:
	// either explicitly closed or out of reconnect attempts.
	OnClose func()
}

// Conn is one long-lived telemetry connection.
type Conn struct {
	url      string
	dialer   *websocket.Dialer
	cb       Callbacks
	registry *Registry

	mu             sync.Mutex
	ws             *websocket.Conn
	state          State
	closeRequested bool
	attempts       int
	reconnectTimer *time.Timer

	// cbMu serializes callback delivery; closeDelivered makes OnClose a
	// one-shot.
	cbMu           sync.Mutex
	closeDelivered bool
}

// newConn creates a Conn and starts dialing. Callers go through a Registry.
func newConn(url string, cb Callbacks, registry *Registry) *Conn {
	c := &Conn{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		cb:       cb,
		registry: registry,
		state:    Connecting,
	}
	go c.dial()
	return c
}

// URL returns the connection's target URL.
func (c *Conn) URL() string {
	return c.url
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// dial attempts to open the underlying socket. A failed dial follows the
// same reconnect policy as an unexpected closure.
func (c *Conn) dial() {
	ws, resp, err := c.dialer.Dial(c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	if c.closeRequested {
		c.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
		return
	}

	if err != nil {
		c.mu.Unlock()
		c.notifyError(apierr.Wrap(apierr.CategoryConnection, "stream_dial", "Opening the telemetry connection failed", err))
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.ws = ws
	c.state = Open
	c.attempts = 0
	c.mu.Unlock()

	logging.LogConnection(c.url, "stream_open")
	go c.readLoop(ws)
}

// readLoop pumps frames off the socket until it errors or closes.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.deliver(payload)
	}
}

// deliver forwards one frame upward, falling back to the raw wrapper when
// the payload is not valid JSON.
func (c *Conn) deliver(payload []byte) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if c.suppressed() {
		return
	}

	logging.LogStreamFrame(c.url, len(payload))

	if json.Valid(payload) {
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(payload)
		}
		return
	}
	if c.cb.OnRaw != nil {
		c.cb.OnRaw(wire.RawFrame{Raw: payload, Timestamp: time.Now()})
	}
}

// handleReadError decides between terminal close and reconnection.
func (c *Conn) handleReadError(err error) {
	c.mu.Lock()
	requested := c.closeRequested
	c.ws = nil
	c.mu.Unlock()

	if requested {
		c.deliverClose()
		return
	}

	var closeErr *websocket.CloseError
	isClose := errors.As(err, &closeErr)

	switch {
	case isClose && closeErr.Code == websocket.CloseNormalClosure:
		// Peer shut the stream down cleanly; nothing to retry.
		c.mu.Lock()
		c.state = Closed
		c.mu.Unlock()
		c.deliverClose()

	case isClose && closeErr.Code == websocket.CloseInternalServerErr:
		// Fatal by contract: the controller told us retrying is pointless.
		c.notifyError(apierr.Wrap(apierr.CategoryConnection, "stream_fatal", "Controller closed the telemetry stream with an internal error", err))
		c.mu.Lock()
		c.state = Errored
		c.mu.Unlock()
		c.deliverClose()

	default:
		c.notifyError(apierr.Wrap(apierr.CategoryConnection, "stream_closed", "Telemetry stream closed unexpectedly", err))
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
	}
}

// scheduleReconnectLocked arms the reconnect timer, or gives up and marks
// the connection errored once the attempt budget is spent. Caller holds mu.
func (c *Conn) scheduleReconnectLocked() {
	if c.closeRequested {
		return
	}

	c.attempts++
	if c.attempts > MaxReconnectAttempts {
		c.state = Errored
		go c.deliverClose()
		return
	}

	delay := backoff.Delay(c.attempts)
	c.state = Connecting
	logging.LogReconnect(c.url, c.attempts, delay.Milliseconds())

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closeRequested {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.dial()
	})
}

// Close marks the connection as intentionally closed, cancels any pending
// reconnect, closes the socket with a normal-closure code and delivers the
// close callback exactly once. Idempotent; no callback fires after it
// returns.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closeRequested {
		c.mu.Unlock()
		return
	}
	c.closeRequested = true
	c.state = Closed

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = ws.Close()
	}

	logging.LogConnection(c.url, "stream_closed")
	c.deliverClose()
}

// notifyError forwards a categorized error upward unless delivery is
// suppressed.
func (c *Conn) notifyError(err *apierr.Error) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if c.suppressed() {
		return
	}
	logging.Warn("Stream error",
		zap.String("url", c.url),
		zap.String("code", err.Code),
		zap.Error(err),
	)
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}

// deliverClose fires OnClose exactly once and removes the Conn from its
// registry.
func (c *Conn) deliverClose() {
	c.cbMu.Lock()
	if c.closeDelivered {
		c.cbMu.Unlock()
		return
	}
	c.closeDelivered = true
	cb := c.cb.OnClose
	if cb != nil {
		cb()
	}
	c.cbMu.Unlock()

	if c.registry != nil {
		c.registry.remove(c)
	}
}

// suppressed reports whether message/error delivery should be dropped.
// Close delivery has its own one-shot gate. Callers hold cbMu; the check
// reads closeRequested under mu, but only after Close() has already set it,
// so a delivery racing Close() either completes before Close acquires cbMu
// or observes the flag.
func (c *Conn) suppressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeRequested
}
