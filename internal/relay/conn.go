package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10 // full game snapshots pass through the relay
)

// Conn is one live peer connection as the registry sees it.
type Conn interface {
	ID() string
	Write(data []byte) error
	Close() error
}

// peerConn wraps a websocket connection with a write lock so the reader
// loop's direct replies and registry broadcasts never interleave frames.
type peerConn struct {
	id      string
	rawConn *websocket.Conn
	mu      sync.Mutex
}

func (c *peerConn) ID() string { return c.id }

func (c *peerConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(websocket.TextMessage, data)
}

func (c *peerConn) Close() error {
	return c.rawConn.Close()
}
