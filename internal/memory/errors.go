// Package memory implements the facade (C7) that composes the pool,
// cache, row storage, and vector index into the public surface callers
// use: create/get/update/delete/list per kind, semantic search, stats,
// and health checks.
package memory

import "errors"

// ErrNotInitialized is returned by every public operation issued before
// Initialize or after Shutdown.
var ErrNotInitialized = errors.New("memory: service not initialized")
