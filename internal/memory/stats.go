package memory

import (
	"context"

	"github.com/thebtf/memvault/internal/cache"
	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/vectorindex"
)

// Stats aggregates pool, cache, and vector-index statistics into a
// single snapshot.
type Stats struct {
	Pool   db.Stats
	Caches map[string]cache.Stats
	Index  vectorindex.Stats
}

// GetStats returns the current aggregate snapshot.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	if err := s.ensureInitialized(); err != nil {
		return Stats{}, err
	}

	var indexStats vectorindex.Stats
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		indexStats, err = c.index.GetIndexStats(ctx)
		return err
	})
	if err != nil {
		return Stats{}, err
	}

	poolStats := s.pool.GetStats()
	cacheStats := map[string]cache.Stats{
		"rule":        s.ruleCache.GetStats(),
		"project_doc": s.docCache.GetStats(),
		"ref":         s.refCache.GetStats(),
		"ref:name":    s.refNameCache.GetStats(),
		"search":      s.searchCache.GetStats(),
	}

	if s.recorder != nil {
		s.recorder.RecordPool(ctx, int64(poolStats.ActiveConnections), int64(poolStats.IdleConnections), int64(poolStats.WaitingRequests))
		for _, cs := range cacheStats {
			s.recorder.RecordCache(ctx, int64(cs.Size), cs.HitRate)
		}
		s.recorder.RecordIndex(ctx, indexStats.TotalRows, indexStats.TotalEmbedded)
	}

	return Stats{
		Pool:   poolStats,
		Caches: cacheStats,
		Index:  indexStats,
	}, nil
}

// HealthCheck verifies the service is initialized and the pool can
// still serve a connection within the default checkout timeout.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	pooled, err := s.pool.GetConnection(ctx, defaultCheckoutTimeout)
	if err != nil {
		return err
	}
	defer s.pool.ReleaseConnection(pooled)
	return pooled.DB.PingContext(ctx)
}

// ClearCache empties every cache namespace without touching stored rows.
func (s *Service) ClearCache() {
	s.ruleCache.Clear()
	s.docCache.Clear()
	s.refCache.Clear()
	s.refNameCache.Clear()
	s.searchCache.Clear()
}
