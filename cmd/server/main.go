// Package main provides the entry point for the memvault HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/thebtf/memvault/internal/config"
	"github.com/thebtf/memvault/internal/httpapi"
	"github.com/thebtf/memvault/internal/memory"
	"github.com/thebtf/memvault/internal/telemetry"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if lvl, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg := config.Default()
	cfg.Database.URL = envOr("DATABASE_URL", cfg.Database.URL)
	cfg.Database.AuthToken = envOr("DATABASE_AUTH_TOKEN", cfg.Database.AuthToken)
	cfg.Database.EncryptionKey = envOr("MEMVAULT_ENCRYPTION_KEY", cfg.Database.EncryptionKey)
	cfg.Database.MaxConnections = envIntOr("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Vector.Dimensions = envIntOr("VECTOR_DIMENSIONS", cfg.Vector.Dimensions)

	log.Info().
		Str("database_url", cfg.Database.URL).
		Str("node_env", envOr("NODE_ENV", "development")).
		Int("vector_dimensions", cfg.Vector.Dimensions).
		Msg("starting memvault server")

	svc := memory.New(cfg, log.Logger)

	// No collector is wired up by default: NewRecorder over a noop meter
	// keeps GetStats' RecordPool/RecordCache/RecordIndex calls cheap
	// no-ops until a real MeterProvider is plumbed in.
	recorder, err := telemetry.NewRecorder(noop.NewMeterProvider().Meter("memvault"))
	if err != nil {
		log.Fatal().Err(err).Msg("build telemetry recorder")
	}
	svc.WithRecorder(recorder)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.Initialize(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("initialize memory service")
	}
	cancel()

	server := httpapi.New(svc)
	addr := envOr("MEMVAULT_ADDR", ":8080")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	svc.Shutdown()

	log.Info().Msg("memvault server shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
