package memory

import (
	"context"
	"fmt"

	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/storage"
)

func docCacheKey(id string) string { return "project_doc:" + id }

// CreateProjectDoc inserts doc and optionally stores its embedding,
// caching the new row under its id key.
func (s *Service) CreateProjectDoc(ctx context.Context, doc storage.ProjectDoc, embedding []float32) (storage.ProjectDoc, error) {
	var created storage.ProjectDoc
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		created, err = c.docs.Create(ctx, doc)
		if err != nil {
			return err
		}
		if embedding != nil {
			if err := c.index.StoreEmbedding(ctx, db.TableProjectDocs, created.ID, embedding); err != nil {
				return fmt.Errorf("memory: store project doc embedding: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return storage.ProjectDoc{}, err
	}
	s.docCache.Set(docCacheKey(created.ID), created)
	return created, nil
}

// GetProjectDoc is cache-aside, positive-only.
func (s *Service) GetProjectDoc(ctx context.Context, id string) (storage.ProjectDoc, bool, error) {
	if v, ok := s.docCache.Get(docCacheKey(id)); ok {
		return v.(storage.ProjectDoc), true, nil
	}

	var doc storage.ProjectDoc
	var found bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		doc, found, err = c.docs.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return storage.ProjectDoc{}, false, err
	}
	if !found {
		return storage.ProjectDoc{}, false, nil
	}
	s.docCache.Set(docCacheKey(id), doc)
	return doc, true, nil
}

// UpdateProjectDoc performs a read-modify-write and refreshes the cache
// entry on success.
func (s *Service) UpdateProjectDoc(ctx context.Context, id string, u storage.ProjectDocUpdate) (storage.ProjectDoc, bool, error) {
	var updated storage.ProjectDoc
	var found bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		updated, found, err = c.docs.Update(ctx, id, u)
		return err
	})
	if err != nil || !found {
		return storage.ProjectDoc{}, found, err
	}
	s.docCache.Set(docCacheKey(id), updated)
	return updated, true, nil
}

// DeleteProjectDoc removes the row and evicts its cache entry.
func (s *Service) DeleteProjectDoc(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		removed, err = c.docs.Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	s.docCache.Delete(docCacheKey(id))
	return removed, nil
}

// ListProjectDocs is uncached; optionally scoped to a single project.
func (s *Service) ListProjectDocs(ctx context.Context, projectID string, opts storage.ListOptions) ([]storage.ProjectDoc, error) {
	var docs []storage.ProjectDoc
	err := s.withConnection(ctx, func(c conn) error {
		var err error
		if projectID != "" {
			docs, err = c.docs.FindByProjectID(ctx, projectID, opts)
		} else {
			docs, err = c.docs.List(ctx, opts)
		}
		return err
	})
	return docs, err
}
