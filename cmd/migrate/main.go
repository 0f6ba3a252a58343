// Package main provides a thin CLI that applies the baseline schema to a
// memvault database. It reads connection parameters directly from the
// environment; wiring a full config loader (file-based overrides, flags)
// is left to the embedding application.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/memvault/internal/db"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if lvl, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	url := envOr("DATABASE_URL", "file:memory.db")
	maxConns := envIntOr("DATABASE_MAX_CONNECTIONS", 10)

	log.Info().
		Str("database_url", url).
		Str("node_env", envOr("NODE_ENV", "development")).
		Msg("applying memvault schema")

	pool := db.New(db.Config{
		URL:            url,
		MaxConnections: maxConns,
		Logger:         log.Logger,
	})
	defer pool.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.GetConnection(ctx, 10*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("acquire connection")
	}
	defer pool.ReleaseConnection(conn)

	runner := db.NewMigrationRunner(log.Logger)
	if err := runner.InitializeSchema(conn.DB); err != nil {
		log.Fatal().Err(err).Msg("initialize schema")
	}

	version, err := runner.GetCurrentVersion(conn.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("read schema version")
	}
	log.Info().Int("schema_version", version).Msg("schema up to date")
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
