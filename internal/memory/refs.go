package memory

import (
	"context"
	"fmt"

	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/storage"
)

func refCacheKey(id string) string       { return "ref:" + id }
func refNameCacheKey(name string) string { return "ref:name:" + name }

// CreateRef inserts ref and optionally stores its embedding, caching the
// new row under both its id key and its name key.
func (s *Service) CreateRef(ctx context.Context, ref storage.Ref, embedding []float32) (storage.Ref, error) {
	var created storage.Ref
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		created, err = c.refs.Create(ctx, ref)
		if err != nil {
			return err
		}
		if embedding != nil {
			if err := c.index.StoreEmbedding(ctx, db.TableRefs, created.ID, embedding); err != nil {
				return fmt.Errorf("memory: store ref embedding: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return storage.Ref{}, err
	}
	s.refCache.Set(refCacheKey(created.ID), created)
	s.refNameCache.Set(refNameCacheKey(created.Name), created)
	return created, nil
}

// GetRef is cache-aside, positive-only.
func (s *Service) GetRef(ctx context.Context, id string) (storage.Ref, bool, error) {
	if v, ok := s.refCache.Get(refCacheKey(id)); ok {
		return v.(storage.Ref), true, nil
	}

	var ref storage.Ref
	var found bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		ref, found, err = c.refs.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return storage.Ref{}, false, err
	}
	if !found {
		return storage.Ref{}, false, nil
	}
	s.refCache.Set(refCacheKey(id), ref)
	return ref, true, nil
}

// GetRefByName checks the name-keyed cache first; on a miss it queries
// by name and populates both the name- and id-keyed caches.
func (s *Service) GetRefByName(ctx context.Context, name string) (storage.Ref, bool, error) {
	if v, ok := s.refNameCache.Get(refNameCacheKey(name)); ok {
		return v.(storage.Ref), true, nil
	}

	var ref storage.Ref
	var found bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		ref, found, err = c.refs.FindByName(ctx, name)
		return err
	})
	if err != nil {
		return storage.Ref{}, false, err
	}
	if !found {
		return storage.Ref{}, false, nil
	}
	s.refNameCache.Set(refNameCacheKey(name), ref)
	s.refCache.Set(refCacheKey(ref.ID), ref)
	return ref, true, nil
}

// UpdateRef performs a read-modify-write, overwrites the id-keyed cache
// entry, and evicts the name-keyed entry (the name itself may have
// changed, and a stale name key is worse than a forced re-fetch).
func (s *Service) UpdateRef(ctx context.Context, id string, u storage.RefUpdate) (storage.Ref, bool, error) {
	var previous storage.Ref
	var updated storage.Ref
	var found bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		previous, found, err = c.refs.FindByID(ctx, id)
		if err != nil || !found {
			return err
		}
		updated, found, err = c.refs.Update(ctx, id, u)
		return err
	})
	if err != nil || !found {
		return storage.Ref{}, found, err
	}
	s.refCache.Set(refCacheKey(id), updated)
	s.refNameCache.Delete(refNameCacheKey(previous.Name))
	return updated, true, nil
}

// DeleteRef removes the row and evicts both its id- and name-keyed
// cache entries.
func (s *Service) DeleteRef(ctx context.Context, id string) (bool, error) {
	var existing storage.Ref
	var found bool
	var removed bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		existing, found, err = c.refs.FindByID(ctx, id)
		if err != nil || !found {
			return err
		}
		removed, err = c.refs.Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	s.refCache.Delete(refCacheKey(id))
	if found {
		s.refNameCache.Delete(refNameCacheKey(existing.Name))
	}
	return removed, nil
}

// ListRefs is uncached; optionally scoped to a single channel.
func (s *Service) ListRefs(ctx context.Context, channelID string, opts storage.ListOptions) ([]storage.Ref, error) {
	var refs []storage.Ref
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		if channelID != "" {
			refs, err = c.refs.FindByChannelID(ctx, channelID, opts)
		} else {
			refs, err = c.refs.List(ctx, opts)
		}
		return err
	})
	return refs, err
}
