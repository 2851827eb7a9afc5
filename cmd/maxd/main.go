// Command maxd runs the Max voice assistant server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbegg/go-max/internal/config"
	"github.com/rbegg/go-max/internal/log"
	"github.com/rbegg/go-max/pkg/server"
	"github.com/rbegg/go-max/pkg/session"
)

func main() {
	cfg := config.FromEnv()
	log.Init(cfg.LogLevel)
	logger := log.L()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Services warm up in the background so the server can accept
	// connections right away; early sessions are told to wait.
	services := session.NewServices(cfg, logger)
	go func() {
		if err := services.Start(ctx); err != nil {
			logger.Error("service startup failed", "error", err)
		}
	}()

	srv := server.New(ctx, services, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	// End every session, then stop the listener and release shared
	// resources.
	cancel()
	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}
	services.Close(context.Background())

	logger.Info("goodbye")
}
