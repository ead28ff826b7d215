package http_server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"fallacypartygo/internal/config"
	"fallacypartygo/internal/http/suggesthandler"
	"fallacypartygo/internal/relay"
)

const qrSize = 256

type httpServer struct {
	cfg        *config.Config
	srv        http.Server
	ln         net.Listener
	relaySrv   *relay.Server
	registry   *relay.Registry
	suggest    *suggesthandler.Handler
	appVersion string
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, cfg *config.Config, relaySrv *relay.Server, registry *relay.Registry, suggest *suggesthandler.Handler, appVersion string) *httpServer {
	return &httpServer{
		cfg:        cfg,
		relaySrv:   relaySrv,
		registry:   registry,
		suggest:    suggest,
		appVersion: appVersion,
		ctx:        ctx,
	}
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.cfg.HttpServerPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	routerEngine := gin.New()
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint: the session relay
	routerEngine.GET("/ws", h.relaySrv.Handle)

	// operational endpoints
	routerEngine.GET("/healthz", h.health)
	routerEngine.GET("/version", h.version)
	routerEngine.GET("/stats", h.stats)

	// QR share for a session's join link
	routerEngine.GET("/sessions/:code/qr", h.sessionQR)

	// REST API
	h.suggest.Register(routerEngine)

	h.srv = http.Server{
		Handler: routerEngine,
	}

	return h.srv.Serve(h.ln)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}

	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
		log.Println("shutdown timeout (10 s)")
	}

	return nil
}

// ---------------------------------------------------------------------------
//  Handlers
// ---------------------------------------------------------------------------

func (h *httpServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpServer) version(c *gin.Context) {
	c.String(http.StatusOK, "fallacypartygo v%s\n", h.appVersion)
}

func (h *httpServer) stats(c *gin.Context) {
	sessions, conns := h.registry.Stats()
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "connections": conns})
}

// sessionQR renders a PNG QR code of the join URL for a session, so the
// host can put it on the shared screen.
func (h *httpServer) sessionQR(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	joinURL := fmt.Sprintf("%s/join/%s", strings.TrimSuffix(h.cfg.PublicBaseURL, "/"), code)

	png, err := qrcode.Encode(joinURL, qrcode.Medium, qrSize)
	if err != nil {
		zap.L().Warn("http.qr", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr generation failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
