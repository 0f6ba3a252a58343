package storage_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/memvault/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.db")
	pool := db.New(db.Config{URL: "file:" + path, MaxConnections: 2, Logger: zerolog.Nop()})
	t.Cleanup(pool.Shutdown)

	c, err := pool.GetConnection(context.Background(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { pool.ReleaseConnection(c) })

	runner := db.NewMigrationRunner(zerolog.Nop())
	require.NoError(t, runner.InitializeSchema(c.DB))
	return c.DB
}
