// Package client is the device-side transport for the session relay: one
// outbound websocket at a time, typed subscriber fan-out, a 30 s heartbeat,
// and automatic reconnection at a fixed 3 s delay.
package client

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fallacypartygo/internal/protocol"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultReconnectDelay    = 3 * time.Second
)

// Handler receives every delivered envelope of the subscribed type.
type Handler func(protocol.Envelope)

// Subscription is the identity token returned by On. Removal goes through
// the token, never through value equality of the handler closure.
type Subscription struct {
	eventType protocol.EventType
	handler   Handler
}

// Options configures a Transport. URL is the relay endpoint, e.g.
// "ws://localhost:8085/ws". Zero intervals fall back to the defaults.
type Options struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration

	// OnStatusChange, when set, observes connected/disconnected flips.
	// Transport errors are never surfaced any other way.
	OnStatusChange func(connected bool)
}

// Transport wraps exactly one logical connection per device.
type Transport struct {
	opts Options

	mu          sync.Mutex
	conn        *websocket.Conn
	connected   bool
	sessionCode string
	connecting  bool

	// gen is bumped by every Disconnect. A dial or reconnect timer that
	// started under an older generation must stand down instead of
	// re-establishing a connection the caller just tore down.
	gen uint64

	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}

	subsMu sync.RWMutex
	subs   map[protocol.EventType]map[*Subscription]struct{}
}

func NewTransport(opts Options) *Transport {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	return &Transport{
		opts: opts,
		subs: make(map[protocol.EventType]map[*Subscription]struct{}),
	}
}

// Connect opens a connection for code. Calling it while already connected is
// a no-op. A failed dial schedules a retry and returns the dial error.
func (t *Transport) Connect(code string) error {
	t.mu.Lock()
	if t.connected || t.connecting {
		t.mu.Unlock()
		return nil
	}
	t.connecting = true
	t.sessionCode = code
	gen := t.gen
	t.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(t.dialURL(code), nil)

	t.mu.Lock()
	t.connecting = false
	if t.gen != gen {
		// Disconnect raced the dial and wins: drop whatever came back.
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		t.mu.Unlock()
		zap.L().Warn("client.dial", zap.String("session", code), zap.Error(err))
		t.scheduleReconnect()
		return err
	}

	t.conn = conn
	t.connected = true
	t.heartbeatStop = make(chan struct{})
	go t.heartbeat(t.heartbeatStop)
	go t.reader(conn)
	t.mu.Unlock()

	t.notifyStatus(true)
	return nil
}

// Disconnect tears the transport down deterministically: pending reconnect
// cancelled, heartbeat stopped, connection closed. A dial in flight stands
// down when it completes. Safe to call repeatedly.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.gen++
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	t.stopHeartbeatLocked()

	conn := t.conn
	t.conn = nil
	wasConnected := t.connected
	t.connected = false
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected {
		t.notifyStatus(false)
	}
}

// Connected reports the current status signal.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// SessionCode returns the last code passed to Connect.
func (t *Transport) SessionCode() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionCode
}

// Send transmits one envelope if the connection is currently open; otherwise
// the message is silently dropped, never queued. Callers needing delivery
// after a gap re-sync instead of relying on buffering.
func (t *Transport) Send(eventType protocol.EventType, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected || t.conn == nil {
		return
	}
	env, err := protocol.NewEnvelope(eventType, t.sessionCode, payload)
	if err != nil {
		zap.L().Warn("client.marshal", zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := t.conn.WriteJSON(env); err != nil {
		zap.L().Debug("client.send", zap.String("type", string(eventType)), zap.Error(err))
	}
}

// On subscribes handler to one event type. Multiple handlers per type are
// supported; each delivered message invokes every handler once.
func (t *Transport) On(eventType protocol.EventType, handler Handler) *Subscription {
	sub := &Subscription{eventType: eventType, handler: handler}

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if t.subs[eventType] == nil {
		t.subs[eventType] = make(map[*Subscription]struct{})
	}
	t.subs[eventType][sub] = struct{}{}
	return sub
}

// Off removes a subscription. Removing one that is not registered is a no-op.
func (t *Transport) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if set, ok := t.subs[sub.eventType]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(t.subs, sub.eventType)
		}
	}
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (t *Transport) dialURL(code string) string {
	u := t.opts.URL
	if parsed, err := url.Parse(u); err == nil {
		q := parsed.Query()
		q.Set("session", code)
		parsed.RawQuery = q.Encode()
		return parsed.String()
	}
	return u + "?session=" + url.QueryEscape(code)
}

// reader delivers inbound envelopes to subscribers synchronously, so no
// handler ever runs concurrently with itself for the same transport.
func (t *Transport) reader(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.onClose(conn)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			zap.L().Warn("client.message", zap.Error(err))
			continue
		}
		t.dispatch(env)
	}
}

func (t *Transport) dispatch(env protocol.Envelope) {
	t.subsMu.RLock()
	set := t.subs[env.Type]
	handlers := make([]Handler, 0, len(set))
	for sub := range set {
		handlers = append(handlers, sub.handler)
	}
	t.subsMu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
}

// onClose runs when a connection drops for any reason. If the connection is
// no longer the current one, the drop was a manual Disconnect (or an already
// replaced dial) and no reconnect is scheduled.
func (t *Transport) onClose(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.connected = false
	t.stopHeartbeatLocked()
	t.mu.Unlock()

	_ = conn.Close()
	t.notifyStatus(false)

	t.scheduleReconnect()
}

// scheduleReconnect arms a single retry with the last known session code.
// A timer already pending means a retry is on its way; never stack a second.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reconnectTimer != nil {
		return
	}
	gen := t.gen
	t.reconnectTimer = time.AfterFunc(t.opts.ReconnectDelay, func() {
		t.mu.Lock()
		t.reconnectTimer = nil
		code := t.sessionCode
		stale := t.gen != gen
		t.mu.Unlock()

		// A Disconnect since scheduling wins even when Stop came too late.
		if stale || code == "" {
			return
		}
		_ = t.Connect(code)
	})
}

func (t *Transport) heartbeat(stop chan struct{}) {
	ticker := time.NewTicker(t.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.Send(protocol.EventPing, struct{}{})
		}
	}
}

func (t *Transport) stopHeartbeatLocked() {
	if t.heartbeatStop != nil {
		close(t.heartbeatStop)
		t.heartbeatStop = nil
	}
}

func (t *Transport) notifyStatus(connected bool) {
	if t.opts.OnStatusChange != nil {
		t.opts.OnStatusChange(connected)
	}
}
