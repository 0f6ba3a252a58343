package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/memvault/internal/cache"
	"github.com/thebtf/memvault/internal/config"
	"github.com/thebtf/memvault/internal/crypto"
	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/storage"
	"github.com/thebtf/memvault/internal/telemetry"
	"github.com/thebtf/memvault/internal/vectorindex"
)

const defaultCheckoutTimeout = 5 * time.Second

// Service is the memory store facade. It owns the pool and the cache
// namespaces; storage and vector-index helpers are constructed fresh
// inside withConnection, bound to that call's checked-out connection,
// and do not outlive it.
type Service struct {
	cfg    config.Config
	logger zerolog.Logger

	pool     *db.Pool
	sealer   *crypto.Sealer
	recorder *telemetry.Recorder

	ruleCache    *cache.Cache
	docCache     *cache.Cache
	refCache     *cache.Cache
	refNameCache *cache.Cache
	searchCache  *cache.Cache

	searchGroup singleflight.Group

	mu          sync.Mutex
	initialized bool
}

// New constructs a Service from cfg. Call Initialize before issuing any
// other operation.
func New(cfg config.Config, logger zerolog.Logger) *Service {
	namespacedOpts := cache.Options{
		MaxSize:        cfg.Cache.MaxSize,
		TTL:            cfg.Cache.TTL,
		UpdateAgeOnGet: cfg.Cache.UpdateAgeOnGet,
		Logger:         logger,
	}
	return &Service{
		cfg:          cfg,
		logger:       logger,
		ruleCache:    cache.New(namespacedOpts),
		docCache:     cache.New(namespacedOpts),
		refCache:     cache.New(namespacedOpts),
		refNameCache: cache.New(namespacedOpts),
		searchCache:  cache.New(namespacedOpts),
	}
}

// WithRecorder attaches an OTel recorder that GetStats publishes pool,
// cache, and index samples to on every call. Passing nil (the default)
// disables publishing. cmd/server, which has no collector configured,
// attaches a Recorder built over a noop meter.
func (s *Service) WithRecorder(recorder *telemetry.Recorder) *Service {
	s.recorder = recorder
	return s
}

// Initialize opens the pool and applies the baseline schema. A second
// call is idempotent-with-warning: it logs and returns nil without
// redoing any work.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		s.logger.Warn().Msg("memory: Initialize called on an already-initialized service")
		return nil
	}

	sealer, err := crypto.NewSealer(s.cfg.Database.EncryptionKey)
	if err != nil {
		return fmt.Errorf("memory: build sealer: %w", err)
	}
	s.sealer = sealer

	s.pool = db.New(db.Config{
		URL:            s.cfg.Database.URL,
		MaxConnections: s.cfg.Database.MaxConnections,
		IdleTimeout:    s.cfg.Database.IdleTimeout,
		Logger:         s.logger,
	})

	pooled, err := s.pool.GetConnection(ctx, defaultCheckoutTimeout)
	if err != nil {
		return fmt.Errorf("memory: acquire connection for schema init: %w", err)
	}
	defer s.pool.ReleaseConnection(pooled)

	runner := db.NewMigrationRunner(s.logger)
	if err := runner.InitializeSchema(pooled.DB); err != nil {
		return fmt.Errorf("memory: initialize schema: %w", err)
	}

	s.initialized = true
	return nil
}

// Shutdown closes the pool. Every operation issued afterward fails with
// ErrNotInitialized.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	s.pool.Shutdown()
	s.initialized = false
}

// IsReady reports whether Initialize has completed and Shutdown has not
// since been called.
func (s *Service) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Service) ensureInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// conn bundles the per-kind stores and vector index bound to a single
// checked-out connection for the duration of one public operation.
type conn struct {
	rules *storage.RuleStore
	docs  *storage.ProjectDocStore
	refs  *storage.RefStore
	index *vectorindex.Index
}

// withConnection checks out a pooled connection, builds the storage and
// index helpers bound to it, runs op, and releases the connection
// afterward regardless of outcome.
func (s *Service) withConnection(ctx context.Context, op func(c conn) error) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	pooled, err := s.pool.GetConnection(ctx, defaultCheckoutTimeout)
	if err != nil {
		return fmt.Errorf("memory: acquire connection: %w", err)
	}
	defer s.pool.ReleaseConnection(pooled)

	c := conn{
		rules: storage.NewRuleStore(pooled.DB, s.sealer),
		docs:  storage.NewProjectDocStore(pooled.DB, s.sealer),
		refs:  storage.NewRefStore(pooled.DB, s.sealer),
		index: vectorindex.New(pooled.DB, s.cfg.Vector.Dimensions, s.sealer),
	}
	return op(c)
}
