package db_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/memvault/internal/db"
)

func newTestPool(t *testing.T, maxConns int) *db.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.db")
	pool := db.New(db.Config{URL: "file:" + path, MaxConnections: maxConns, IdleTimeout: time.Second})
	t.Cleanup(pool.Shutdown)
	return pool
}

func TestPoolInvariants(t *testing.T) {
	pool := newTestPool(t, 3)
	ctx := context.Background()

	var conns []*db.Conn
	for i := 0; i < 3; i++ {
		c, err := pool.GetConnection(ctx, time.Second)
		require.NoError(t, err)
		conns = append(conns, c)
	}

	stats := pool.GetStats()
	assert.LessOrEqual(t, stats.ActiveConnections+stats.IdleConnections, stats.TotalConnections)
	assert.LessOrEqual(t, stats.TotalConnections, stats.MaxConnections)
	assert.Equal(t, 3, stats.ActiveConnections)

	for _, c := range conns {
		pool.ReleaseConnection(c)
	}
}

// TestActiveStaysMarkedThroughFIFOHandoff covers testable property #10:
// waitingRequests > 0 implies active == maxConnections. A connection
// handed directly from release to a queued waiter must stay counted as
// active throughout the handoff, never dipping to idle in between.
func TestActiveStaysMarkedThroughFIFOHandoff(t *testing.T) {
	pool := newTestPool(t, 2)
	ctx := context.Background()

	c1, err := pool.GetConnection(ctx, time.Second)
	require.NoError(t, err)
	c2, err := pool.GetConnection(ctx, time.Second)
	require.NoError(t, err)

	waiterStarted := make(chan struct{}, 2)
	waiterDone := make(chan *db.Conn, 2)
	spawnWaiter := func() {
		waiterStarted <- struct{}{}
		c, err := pool.GetConnection(ctx, 2*time.Second)
		require.NoError(t, err)
		waiterDone <- c
	}
	go spawnWaiter()
	go spawnWaiter()
	<-waiterStarted
	<-waiterStarted
	// Give both waiters time to enqueue before either connection releases.
	time.Sleep(50 * time.Millisecond)

	pool.ReleaseConnection(c1)

	stats := pool.GetStats()
	assert.Equal(t, 2, stats.ActiveConnections)
	assert.Equal(t, 1, stats.WaitingRequests)

	pool.ReleaseConnection(c2)

	got1 := <-waiterDone
	got2 := <-waiterDone
	pool.ReleaseConnection(got1)
	pool.ReleaseConnection(got2)
}

func TestPoolFIFOOrdering(t *testing.T) {
	// S5: maxConnections=1, dispatch O1,O2,O3 in order, each holds 50ms.
	pool := newTestPool(t, 1)
	ctx := context.Background()

	var order []int
	var mu sync.Mutex
	done := make(chan struct{}, 3)

	run := func(id int, startAfter time.Duration) {
		time.Sleep(startAfter)
		c, err := pool.GetConnection(ctx, 2*time.Second)
		if err != nil {
			done <- struct{}{}
			return
		}
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		pool.ReleaseConnection(c)
		done <- struct{}{}
	}

	go run(1, 0)
	go run(2, 10*time.Millisecond)
	go run(3, 20*time.Millisecond)

	for i := 0; i < 3; i++ {
		<-done
	}

	require.Equal(t, []int{1, 2, 3}, order)
}

func TestCheckoutTimeout(t *testing.T) {
	// S6: maxConnections=1, one slow op in flight; getConnection(100ms) fails.
	pool := newTestPool(t, 1)
	ctx := context.Background()

	c, err := pool.GetConnection(ctx, time.Second)
	require.NoError(t, err)

	release := time.AfterFunc(500*time.Millisecond, func() { pool.ReleaseConnection(c) })
	defer release.Stop()

	start := time.Now()
	_, err = pool.GetConnection(ctx, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, db.ErrCheckoutTimeout)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)

	time.Sleep(600 * time.Millisecond)
	c2, err := pool.GetConnection(ctx, time.Second)
	require.NoError(t, err)
	pool.ReleaseConnection(c2)
}

func TestShutdownRejectsNewCheckouts(t *testing.T) {
	pool := newTestPool(t, 1)
	pool.Shutdown()
	pool.Shutdown() // idempotent

	_, err := pool.GetConnection(context.Background(), 100*time.Millisecond)
	require.ErrorIs(t, err, db.ErrPoolShuttingDown)
}

func TestWithConnectionReleasesOnError(t *testing.T) {
	pool := newTestPool(t, 1)
	ctx := context.Background()

	boom := errorf("boom")
	err := pool.WithConnection(ctx, time.Second, func(_ *sql.DB) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	stats := pool.GetStats()
	assert.Equal(t, 0, stats.ActiveConnections)
}

func TestWithTransactionCommitsAndRollsBack(t *testing.T) {
	pool := newTestPool(t, 1)
	ctx := context.Background()

	c, err := pool.GetConnection(ctx, time.Second)
	require.NoError(t, err)
	defer pool.ReleaseConnection(c)

	_, err = c.DB.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	require.NoError(t, db.WithTransaction(ctx, c.DB, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (id) VALUES (1)")
		return err
	}))

	err = db.WithTransaction(ctx, c.DB, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (id) VALUES (2)"); err != nil {
			return err
		}
		return errorf("rollback me")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, c.DB.QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 1, count, "failed transaction must roll back")
}

func errorf(msg string) error { return &simpleErr{msg} }

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }
