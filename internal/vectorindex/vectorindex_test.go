package vectorindex_test

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

const testDims = 8

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectorindex.db")
	pool := db.New(db.Config{URL: "file:" + path, MaxConnections: 2, Logger: zerolog.Nop()})
	t.Cleanup(pool.Shutdown)

	c, err := pool.GetConnection(context.Background(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { pool.ReleaseConnection(c) })

	runner := db.NewMigrationRunner(zerolog.Nop())
	require.NoError(t, runner.InitializeSchema(c.DB))
	return c.DB
}

func insertRule(t *testing.T, sqlDB *sql.DB, id string) {
	t.Helper()
	_, err := sqlDB.Exec(
		`INSERT INTO rules (id, content, tags, tier, created_at, updated_at) VALUES (?, ?, '[]', 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, "content-"+id,
	)
	require.NoError(t, err)
}

func insertProjectDoc(t *testing.T, sqlDB *sql.DB, id string) {
	t.Helper()
	_, err := sqlDB.Exec(
		`INSERT INTO project_docs (id, project_id, title, content, tags, created_at, updated_at) VALUES (?, 'proj', 'title', ?, '[]', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, "content-"+id,
	)
	require.NoError(t, err)
}

func insertRef(t *testing.T, sqlDB *sql.DB, id string) {
	t.Helper()
	_, err := sqlDB.Exec(
		`INSERT INTO refs (id, name, content, created_at, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, "name-"+id, "content-"+id,
	)
	require.NoError(t, err)
}

func unitVector(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}
