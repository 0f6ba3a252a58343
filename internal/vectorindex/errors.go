// Package vectorindex persists per-row embeddings alongside the rule,
// project-doc, and ref tables, and implements the brute-force
// cosine-similarity scan that powers semantic search across them (C6).
package vectorindex

import "errors"

// ErrUnknownTable is returned when a caller names a table outside the
// allowlisted set (db.TableRules, db.TableProjectDocs, db.TableRefs).
var ErrUnknownTable = errors.New("vectorindex: unknown table")

// ErrNoEmbedding is returned by FindSimilar when the target row has no
// stored embedding to search from.
var ErrNoEmbedding = errors.New("vectorindex: row has no embedding")
