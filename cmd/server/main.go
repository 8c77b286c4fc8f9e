package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deicod/svcerr/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	logger.SetDefault(logger.New(os.Getenv("ENVIRONMENT"), nil))

	settings, err := loadSettings()
	if err != nil {
		logger.FatalErr(err, "failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := newServer(ctx, settings)
	if err != nil {
		logger.FatalErr(err, "failed to create server")
	}
	defer cleanup()

	go func() {
		logger.Info("server listening", "addr", settings.ListenAddr, "issuer", settings.Auth.Issuer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalErr(err, "server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorErr(err, "graceful shutdown failed")
	}
}
