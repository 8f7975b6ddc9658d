package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sharedpad/broadcast"
	"sharedpad/config"
	"sharedpad/internal/document/service"
	"sharedpad/pkg/logger"
	"sharedpad/router"
	"sharedpad/store"
)

func main() {
	foundDotenv := config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	if !foundDotenv {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	// Both are created once here and handed to every request path.
	docStore := store.New()
	bus := broadcast.New(broadcast.WithInboxSize(cfg.InboxSize))
	docService := service.NewDocumentService(docStore, bus)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(docService, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Sugar.Infof("Server running at http://%s", cfg.Addr())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Sugar.Info("Shutting down")
	// Closing the bus ends every open stream so Shutdown does not wait on them.
	bus.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
}
