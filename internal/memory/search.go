package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	goccyjson "github.com/goccy/go-json"

	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/vectorcodec"
	"github.com/thebtf/memvault/internal/vectorindex"
)

// SearchOptions is the facade-level search request: an alias of
// vectorindex.SearchOptions, scoping filters included.
type SearchOptions = vectorindex.SearchOptions

// SemanticSearch scans the corpus for rows whose embedding is similar to
// q, honoring the scoping filters in opts. Results are cached under a
// fingerprint derived from the full query vector and opts: the source
// system's documented fingerprint (first 5 floats only) is collision
// prone, so this implementation hashes the whole
// vector instead, trading a larger key for a materially lower collision
// rate.
func (s *Service) SemanticSearch(ctx context.Context, q []float32, opts SearchOptions) ([]vectorindex.SearchResult, error) {
	key, err := searchCacheKey(q, opts)
	if err == nil {
		if v, ok := s.searchCache.Get(key); ok {
			return v.([]vectorindex.SearchResult), nil
		}
	}

	// singleflight collapses concurrent callers racing on the same
	// fingerprint (e.g. a burst of identical agent queries) into one
	// scan; the losers block on the winner's result instead of each
	// re-running SemanticSearch.
	sfKey := key
	if sfKey == "" {
		sfKey = fmt.Sprintf("noncacheable:%p", &opts)
	}
	v, sfErr, _ := s.searchGroup.Do(sfKey, func() (any, error) {
		var results []vectorindex.SearchResult
		runErr := s.withConnection(ctx, func(c conn) error {
			var err error
			results, err = c.index.SemanticSearch(ctx, q, opts)
			return err
		})
		if runErr != nil {
			return nil, runErr
		}
		if key != "" {
			s.searchCache.Set(key, results)
		}
		return results, nil
	})
	if sfErr != nil {
		return nil, sfErr
	}
	return v.([]vectorindex.SearchResult), nil
}

// SearchInTable scopes SemanticSearch to a single table. Results are not
// cached; the search cache namespace is reserved for the cross-table
// query, which is the far more common and expensive path.
func (s *Service) SearchInTable(ctx context.Context, table string, q []float32, opts SearchOptions) ([]vectorindex.SearchResult, error) {
	var results []vectorindex.SearchResult
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		results, err = c.index.SearchInTable(ctx, table, q, opts)
		return err
	})
	return results, err
}

// FindSimilar locates rows similar to table/id's own embedding,
// excluding the row itself.
func (s *Service) FindSimilar(ctx context.Context, table, id string, opts SearchOptions) ([]vectorindex.SearchResult, error) {
	var results []vectorindex.SearchResult
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		results, err = c.index.FindSimilar(ctx, table, id, opts)
		return err
	})
	return results, err
}

// BatchStoreEmbeddings writes every item in a single transaction and
// evicts the id-keyed cache entry for each (table, id) pair touched, so
// a subsequent Get re-reads the row with its new embedding.
func (s *Service) BatchStoreEmbeddings(ctx context.Context, items []vectorindex.EmbeddingItem) error {
	err := s.withConnection(ctx, func(c conn) error {
		return c.index.BatchStoreEmbeddings(ctx, items)
	})
	if err != nil {
		return err
	}
	for _, it := range items {
		s.evictByTable(it.Table, it.ID)
	}
	return nil
}

func (s *Service) evictByTable(table, id string) {
	switch table {
	case db.TableRules:
		s.ruleCache.Delete(ruleCacheKey(id))
	case db.TableProjectDocs:
		s.docCache.Delete(docCacheKey(id))
	case db.TableRefs:
		s.refCache.Delete(refCacheKey(id))
	}
}

// searchCacheKey derives a stable string key from the full query vector
// and the options that affect which rows can match.
func searchCacheKey(q []float32, opts SearchOptions) (string, error) {
	encodedOpts, err := goccyjson.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("memory: encode search opts: %w", err)
	}
	h := sha256.New()
	h.Write(vectorcodec.Serialize(q))
	h.Write(encodedOpts)
	return "search:" + hex.EncodeToString(h.Sum(nil)), nil
}
