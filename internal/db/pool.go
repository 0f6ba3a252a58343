package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// sessionPragmas are applied once to every connection immediately after
// it is opened.
var sessionPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = memory",
}

// Config configures a Pool.
type Config struct {
	// URL is the engine-specific data source, e.g. "file:memory.db".
	URL string
	// MaxConnections bounds concurrent connections. Defaults to 10.
	MaxConnections int
	// IdleTimeout controls the idle reaper period (fires every
	// IdleTimeout/2). Defaults to 30s. The idle floor below which
	// connections are never reaped is the fixed idleFloor constant.
	IdleTimeout time.Duration
	Logger      zerolog.Logger
}

// conn wraps one dedicated *sql.DB representing a single logical database
// connection (opened with MaxOpenConns=1 against the same DSN).
type conn struct {
	db    *sql.DB
	state connState
}

type connState int

const (
	stateIdle connState = iota
	stateActive
	stateDraining
)

type waiter struct {
	ch chan *conn
}

// Pool is a bounded set of connections to a single embedded SQL engine,
// providing fair FIFO checkout, idle reaping, health-checked reuse, and
// graceful shutdown.
type Pool struct {
	logger      zerolog.Logger
	url         string
	idle        []*conn
	active      map[*conn]struct{}
	waiters     []*waiter
	maxConns    int
	idleTimeout time.Duration
	total       int
	shuttingDown bool

	mu         sync.Mutex
	reaperStop chan struct{}
	reaperDone chan struct{}
}

const idleFloor = 2

// New opens a Pool against the given configuration and starts its idle
// reaper. It does not eagerly open any connections.
func New(cfg Config) *Pool {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 10
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	p := &Pool{
		url:         cfg.URL,
		maxConns:    cfg.MaxConnections,
		idleTimeout: cfg.IdleTimeout,
		active:      make(map[*conn]struct{}),
		logger:      cfg.Logger.With().Str("component", "pool").Logger(),
		reaperStop:  make(chan struct{}),
		reaperDone:  make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

func (p *Pool) openConn() (*conn, error) {
	sqlDB, err := sql.Open(driverName, p.url)
	if err != nil {
		return nil, fmt.Errorf("db: open connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping connection: %w", err)
	}
	for _, pragma := range sessionPragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("db: apply pragma %q: %w", pragma, err)
		}
	}
	return &conn{db: sqlDB}, nil
}

func healthy(c *conn) bool {
	var one int
	return c.db.QueryRow("SELECT 1").Scan(&one) == nil && one == 1
}

// Conn is the handle returned to callers by GetConnection. It exposes the
// *sql.DB for one dedicated connection; callers must release it via the
// Pool that issued it.
type Conn struct {
	DB *sql.DB
	c  *conn
}

// GetConnection checks out a connection, waiting up to timeout for one to
// become available. Waiters are served in FIFO order.
func (p *Pool) GetConnection(ctx context.Context, timeout time.Duration) (*Conn, error) {
	for {
		p.mu.Lock()
		if p.shuttingDown {
			p.mu.Unlock()
			return nil, ErrPoolShuttingDown
		}

		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()

			if !healthy(c) {
				p.logger.Warn().Msg("health probe failed, replacing connection")
				_ = c.db.Close()
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				continue
			}
			c.state = stateActive
			p.mu.Lock()
			p.active[c] = struct{}{}
			p.mu.Unlock()
			return &Conn{DB: c.db, c: c}, nil
		}

		if p.total < p.maxConns {
			p.total++
			p.mu.Unlock()

			c, err := p.openConn()
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, err
			}
			c.state = stateActive
			p.mu.Lock()
			p.active[c] = struct{}{}
			p.mu.Unlock()
			return &Conn{DB: c.db, c: c}, nil
		}

		w := &waiter{ch: make(chan *conn, 1)}
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()

		timer := time.NewTimer(timeout)
		select {
		case c, ok := <-w.ch:
			timer.Stop()
			if !ok {
				// Shutdown closed the channel to reject this waiter.
				return nil, ErrPoolShuttingDown
			}
			return &Conn{DB: c.db, c: c}, nil
		case <-timer.C:
			p.removeWaiter(w)
			return nil, ErrCheckoutTimeout
		case <-ctx.Done():
			timer.Stop()
			p.removeWaiter(w)
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) removeWaiter(w *waiter) {
	p.mu.Lock()
	found := false
	for i, cand := range p.waiters {
		if cand == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			found = true
			break
		}
	}
	p.mu.Unlock()

	if !found {
		// Either a release raced the timeout/cancel and already handed
		// this waiter a connection (reclaim it so it is not leaked), or
		// Shutdown dropped the waiter and closed its channel.
		select {
		case c, ok := <-w.ch:
			if ok {
				p.ReleaseConnection(&Conn{DB: c.db, c: c})
			}
		default:
		}
	}
}

// ReleaseConnection returns a checked-out connection to the pool. If a
// waiter is queued, the connection is handed directly to the head of the
// FIFO queue rather than being marked idle.
func (p *Pool) ReleaseConnection(c *Conn) {
	p.mu.Lock()

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w.ch <- c.c
		return
	}

	delete(p.active, c.c)
	c.c.state = stateIdle
	if p.shuttingDown {
		p.total--
		p.mu.Unlock()
		_ = c.c.db.Close()
		return
	}
	p.idle = append(p.idle, c.c)
	p.mu.Unlock()
}

// WithConnection checks out a connection, runs op, and always releases it.
func (p *Pool) WithConnection(ctx context.Context, timeout time.Duration, op func(*sql.DB) error) error {
	c, err := p.GetConnection(ctx, timeout)
	if err != nil {
		return err
	}
	defer p.ReleaseConnection(c)
	return op(c.DB)
}

// WithTransaction wraps op in BEGIN/COMMIT/ROLLBACK on the given connection.
func WithTransaction(ctx context.Context, sqlDB *sql.DB, op func(*sql.Tx) error) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin transaction: %w", err)
	}
	if err := op(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit transaction: %w", err)
	}
	return nil
}

func (p *Pool) reapLoop() {
	defer close(p.reaperDone)
	ticker := time.NewTicker(p.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.reaperStop:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	var victims []*conn
	for len(p.idle) > idleFloor {
		n := len(p.idle)
		victims = append(victims, p.idle[n-1])
		p.idle = p.idle[:n-1]
		p.total--
	}
	p.mu.Unlock()

	for _, c := range victims {
		_ = c.db.Close()
	}
	if len(victims) > 0 {
		p.logger.Debug().Int("reaped", len(victims)).Msg("idle connections reaped")
	}
}

// Shutdown drains the pool: it rejects queued waiters, stops the reaper,
// and closes every idle and active connection. Idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return
	}
	p.shuttingDown = true
	waiters := p.waiters
	p.waiters = nil
	idle := p.idle
	p.idle = nil
	active := make([]*conn, 0, len(p.active))
	for c := range p.active {
		active = append(active, c)
	}
	p.mu.Unlock()

	close(p.reaperStop)
	<-p.reaperDone

	for _, w := range waiters {
		close(w.ch)
	}
	for _, c := range idle {
		_ = c.db.Close()
	}
	// Active connections are closed as they're released; close any still
	// marked active now in case callers already abandoned them.
	for _, c := range active {
		_ = c.db.Close()
	}
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	ActiveConnections  int
	IdleConnections    int
	TotalConnections   int
	MaxConnections     int
	WaitingRequests    int
}

// GetStats returns the current pool occupancy snapshot.
func (p *Pool) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		ActiveConnections: len(p.active),
		IdleConnections:   len(p.idle),
		TotalConnections:  p.total,
		MaxConnections:    p.maxConns,
		WaitingRequests:   len(p.waiters),
	}
}
