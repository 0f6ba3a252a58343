package memory

import (
	"context"
	"fmt"

	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/storage"
)

func ruleCacheKey(id string) string { return "rule:" + id }

// CreateRule inserts rule and, if it carries an embedding, stores it in
// the same connection as a second statement (non-atomic with the row
// insert, per the documented create-then-store-embedding trade-off).
// The new row is cached under its id key.
func (s *Service) CreateRule(ctx context.Context, rule storage.Rule, embedding []float32) (storage.Rule, error) {
	var created storage.Rule
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		created, err = c.rules.Create(ctx, rule)
		if err != nil {
			return err
		}
		if embedding != nil {
			if err := c.index.StoreEmbedding(ctx, db.TableRules, created.ID, embedding); err != nil {
				return fmt.Errorf("memory: store rule embedding: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return storage.Rule{}, err
	}
	s.ruleCache.Set(ruleCacheKey(created.ID), created)
	return created, nil
}

// GetRule is cache-aside: a hit skips the pool entirely; a miss
// populates the cache with the fetched row. Misses on a row that
// doesn't exist are never cached (positive-only caching).
func (s *Service) GetRule(ctx context.Context, id string) (storage.Rule, bool, error) {
	if v, ok := s.ruleCache.Get(ruleCacheKey(id)); ok {
		return v.(storage.Rule), true, nil
	}

	var rule storage.Rule
	var found bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		rule, found, err = c.rules.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return storage.Rule{}, false, err
	}
	if !found {
		return storage.Rule{}, false, nil
	}
	s.ruleCache.Set(ruleCacheKey(id), rule)
	return rule, true, nil
}

// UpdateRule performs a read-modify-write and overwrites the id-keyed
// cache entry on success.
func (s *Service) UpdateRule(ctx context.Context, id string, u storage.RuleUpdate) (storage.Rule, bool, error) {
	var updated storage.Rule
	var found bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		updated, found, err = c.rules.Update(ctx, id, u)
		return err
	})
	if err != nil || !found {
		return storage.Rule{}, found, err
	}
	s.ruleCache.Set(ruleCacheKey(id), updated)
	return updated, true, nil
}

// DeleteRule removes the row and evicts its id-keyed cache entry.
func (s *Service) DeleteRule(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		removed, err = c.rules.Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	s.ruleCache.Delete(ruleCacheKey(id))
	return removed, nil
}

// ListRules is uncached: the result set is dependent on opts and is not
// worth an id-per-combination cache namespace.
func (s *Service) ListRules(ctx context.Context, tier *int, opts storage.ListOptions) ([]storage.Rule, error) {
	var rules []storage.Rule
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		if tier != nil {
			rules, err = c.rules.FindByTier(ctx, *tier, opts)
		} else {
			rules, err = c.rules.List(ctx, opts)
		}
		return err
	})
	return rules, err
}
