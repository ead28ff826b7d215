package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fallacypartygo/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Session codes are the only membership check; any holder may join.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts websocket connections and dispatches their frames: answer
// heartbeats directly, rebroadcast everything else to the rest of the
// connection's group. It is content-blind: game payloads are opaque and no
// per-session state lives here beyond the connection sets.
type Server struct {
	registry *Registry
}

func NewServer(registry *Registry) *Server {
	return &Server{registry: registry}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// Handle upgrades /ws?session=CODE. A missing code still accepts the
// connection; it just never joins a group, so its frames can only be routed
// by a sessionCode carried in the message itself.
func (s *Server) Handle(ginCtx *gin.Context) {
	sessionCode := ginCtx.Query("session")

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)

	conn := &peerConn{id: uuid.NewString(), rawConn: rawConn}
	if sessionCode != "" {
		s.registry.AddToGroup(sessionCode, conn)
		zap.L().Info("ws.join", zap.String("session", sessionCode), zap.String("conn", conn.id))
	}

	go s.reader(sessionCode, conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *Server) reader(cachedCode string, conn *peerConn) {
	defer func() {
		if cachedCode != "" {
			s.registry.RemoveFromGroup(cachedCode, conn)
			zap.L().Info("ws.leave", zap.String("session", cachedCode), zap.String("conn", conn.id))
		}
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return
		}
		s.handleMessage(conn, cachedCode, data)
	}
}

// handleMessage classifies one inbound frame. Malformed frames are logged
// and dropped; the connection stays open.
func (s *Server) handleMessage(conn Conn, cachedCode string, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		zap.L().Warn("ws.message", zap.String("conn", conn.ID()), zap.Error(err))
		return
	}

	// Heartbeats are answered directly, never broadcast.
	if env.Type == protocol.EventPing {
		pong := protocol.Envelope{Type: protocol.EventPong, Timestamp: protocol.Now()}
		if b, err := json.Marshal(pong); err == nil {
			_ = conn.Write(b)
		}
		return
	}

	code := env.SessionCode
	if code == "" {
		code = cachedCode
	}
	if code == "" {
		return // no resolvable group
	}

	env.Stamp()
	b, err := json.Marshal(env)
	if err != nil {
		zap.L().Warn("ws.restamp", zap.String("conn", conn.ID()), zap.Error(err))
		return
	}
	s.registry.Broadcast(code, conn, b)
}
