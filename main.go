package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"fallacypartygo/internal/config"
	"fallacypartygo/internal/http/http_server"
	"fallacypartygo/internal/http/suggesthandler"
	"fallacypartygo/internal/relay"
)

const releaseVersion = "1.0.0"

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Connection registry, owned by the server's lifetime. One instance,
	// injected everywhere it is needed; no package-level singleton.
	registry := relay.NewRegistry()

	// 4. Relay dispatcher on top of the registry
	relaySrv := relay.NewServer(registry)

	// 5. AI suggestion proxy (serves the canned fallback without a key)
	suggest := suggesthandler.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)

	// 6. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg, relaySrv, registry, suggest, releaseVersion)

	go func() {
		<-ctx.Done()
		if err := httpServer.Dispose(); err != nil {
			Log.Error("Failed to shut down HTTP server", zap.Error(err))
		}
	}()

	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
