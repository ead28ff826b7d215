package relay

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fallacypartygo/internal/protocol"
)

func TestHandleMessage_PingPong(t *testing.T) {
	r := NewRegistry()
	s := NewServer(r)

	sender := &mockConn{id: "c1"}
	peer := &mockConn{id: "c2"}
	r.AddToGroup("ABC", sender)
	r.AddToGroup("ABC", peer)

	ping, _ := json.Marshal(protocol.Envelope{Type: protocol.EventPing})
	s.handleMessage(sender, "ABC", ping)

	got := sender.getReceived()
	require.Len(t, got, 1, "ping elicits exactly one direct reply")

	var pong protocol.Envelope
	require.NoError(t, json.Unmarshal(got[0], &pong))
	assert.Equal(t, protocol.EventPong, pong.Type)
	assert.NotEmpty(t, pong.Timestamp, "pong carries the server time")

	assert.Empty(t, peer.getReceived(), "heartbeats are never broadcast")
}

func TestHandleMessage_RebroadcastRestampsTimestamp(t *testing.T) {
	r := NewRegistry()
	s := NewServer(r)

	sender := &mockConn{id: "c1"}
	peer := &mockConn{id: "c2"}
	r.AddToGroup("ABC", sender)
	r.AddToGroup("ABC", peer)

	in, _ := json.Marshal(protocol.Envelope{
		Type:        protocol.EventGameAdvance,
		SessionCode: "ABC",
		Payload:     json.RawMessage(`{"gameId":"warmup","step":2}`),
		Timestamp:   "2001-01-01T00:00:00Z",
	})
	s.handleMessage(sender, "ABC", in)

	got := peer.getReceived()
	require.Len(t, got, 1)

	var out protocol.Envelope
	require.NoError(t, json.Unmarshal(got[0], &out))
	assert.Equal(t, protocol.EventGameAdvance, out.Type)
	assert.JSONEq(t, `{"gameId":"warmup","step":2}`, string(out.Payload))
	assert.NotEqual(t, "2001-01-01T00:00:00Z", out.Timestamp, "relay overwrites the client timestamp")

	assert.Empty(t, sender.getReceived(), "sender receives nothing")
}

func TestHandleMessage_FallsBackToCachedCode(t *testing.T) {
	r := NewRegistry()
	s := NewServer(r)

	sender := &mockConn{id: "c1"}
	peer := &mockConn{id: "c2"}
	r.AddToGroup("ABC", sender)
	r.AddToGroup("ABC", peer)

	// No sessionCode in the message itself.
	in, _ := json.Marshal(protocol.Envelope{Type: protocol.EventGameVote})
	s.handleMessage(sender, "ABC", in)

	assert.Len(t, peer.getReceived(), 1)
}

func TestHandleMessage_NoResolvableCode(t *testing.T) {
	r := NewRegistry()
	s := NewServer(r)

	sender := &mockConn{id: "c1"}
	peer := &mockConn{id: "c2"}
	r.AddToGroup("ABC", peer)

	in, _ := json.Marshal(protocol.Envelope{Type: protocol.EventGameVote})
	s.handleMessage(sender, "", in)

	assert.Empty(t, peer.getReceived(), "unroutable frames are silently dropped")
}

func TestHandleMessage_MalformedFrame(t *testing.T) {
	r := NewRegistry()
	s := NewServer(r)

	sender := &mockConn{id: "c1"}
	peer := &mockConn{id: "c2"}
	r.AddToGroup("ABC", sender)
	r.AddToGroup("ABC", peer)

	s.handleMessage(sender, "ABC", []byte("not json"))

	assert.Empty(t, sender.getReceived())
	assert.Empty(t, peer.getReceived())
}

// ---------------------------------------------------------------------------
//  End-to-end over real websockets
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := NewRegistry()
	relaySrv := NewServer(registry)

	engine := gin.New()
	engine.GET("/ws", relaySrv.Handle)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dialWS(t *testing.T, srv *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + code
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env protocol.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestRelay_EndToEndFanout(t *testing.T) {
	srv, registry := newTestServer(t)

	conn1 := dialWS(t, srv, "ABC")
	conn2 := dialWS(t, srv, "ABC")
	conn3 := dialWS(t, srv, "ABC")

	waitForConns(t, registry, 3)

	require.NoError(t, conn1.WriteJSON(protocol.Envelope{
		Type:        protocol.EventGameAdvance,
		SessionCode: "ABC",
		Payload:     json.RawMessage(`{"step":2}`),
	}))

	for _, conn := range []*websocket.Conn{conn2, conn3} {
		env := readEnvelope(t, conn)
		assert.Equal(t, protocol.EventGameAdvance, env.Type)
		assert.JSONEq(t, `{"step":2}`, string(env.Payload))
		assert.NotEmpty(t, env.Timestamp, "timestamp is server-set")
	}

	// Connection 1 receives nothing.
	_ = conn1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var env protocol.Envelope
	assert.Error(t, conn1.ReadJSON(&env), "sender must not receive its own broadcast")
}

func TestRelay_CloseRemovesMembership(t *testing.T) {
	srv, registry := newTestServer(t)

	conn1 := dialWS(t, srv, "ABC")
	conn2 := dialWS(t, srv, "ABC")
	waitForConns(t, registry, 2)

	// No leave frame: membership is removed purely from the close event.
	conn2.Close()
	require.Eventually(t, func() bool {
		_, conns := registry.Stats()
		return conns == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn1.WriteJSON(protocol.Envelope{
		Type:        protocol.EventGameVote,
		SessionCode: "ABC",
	}))

	// Delivery to the closed conn is not attempted; the group survives.
	_, conns := registry.Stats()
	assert.Equal(t, 1, conns)
}

func TestRelay_PingOverWire(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dialWS(t, srv, "ABC")
	require.NoError(t, conn.WriteJSON(protocol.Envelope{Type: protocol.EventPing}))

	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.EventPong, env.Type)
	assert.NotEmpty(t, env.Timestamp)
}

func TestRelay_NoSessionQueryStillAccepted(t *testing.T) {
	srv, registry := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, conns := registry.Stats()
	assert.Zero(t, conns, "codeless connection never joins a group")

	// Heartbeats still work for it.
	require.NoError(t, conn.WriteJSON(protocol.Envelope{Type: protocol.EventPing}))
	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.EventPong, env.Type)
}

func waitForConns(t *testing.T, registry *Registry, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, conns := registry.Stats()
		return conns == want
	}, 2*time.Second, 10*time.Millisecond)
}
