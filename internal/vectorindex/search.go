package vectorindex

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/vectorcodec"
)

// SearchOptions configures a semantic search. Zero values are replaced by
// Normalize with its defaults (limit 10, threshold 0.7, metadata
// included).
type SearchOptions struct {
	Limit     int
	Threshold float64
	// IncludeMetadata defaults to true when nil; pass a pointer to false
	// to explicitly suppress metadata in results.
	IncludeMetadata *bool

	// Scope filters narrow the scan to rows matching the given
	// attribute. Each is ignored by tables that don't carry the
	// corresponding column (e.g. ProjectID has no effect on rules/refs).
	ProjectID string
	ChannelID string
	Tier      *int
	Tags      []string
}

// Normalize applies defaults to zero-valued fields.
func (o SearchOptions) Normalize() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.Threshold == 0 {
		o.Threshold = 0.7
	}
	if o.IncludeMetadata == nil {
		include := true
		o.IncludeMetadata = &include
	}
	return o
}

func (o SearchOptions) includeMetadata() bool {
	return o.IncludeMetadata == nil || *o.IncludeMetadata
}

// SearchResult is one ranked candidate from a semantic search.
type SearchResult struct {
	ID         string
	Content    string
	Similarity float64
	Type       string
	Metadata   []byte
}

// SemanticSearch scans all three tables for rows with a non-null
// embedding, ranks them by cosine similarity to q, and returns the top
// opts.Limit candidates whose score is >= opts.Threshold. Ties break by
// table iteration order (rules, project_docs, refs) then row order.
func (ix *Index) SemanticSearch(ctx context.Context, q []float32, opts SearchOptions) ([]SearchResult, error) {
	if err := vectorcodec.ValidateDimensions(q, ix.dims); err != nil {
		return nil, err
	}
	opts = opts.Normalize()

	var candidates []SearchResult
	for _, table := range allTables() {
		rows, err := ix.scanTable(ctx, table, q, opts)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rows...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	return candidates, nil
}

// SearchInTable scans a single table with identical ranking semantics to
// SemanticSearch.
func (ix *Index) SearchInTable(ctx context.Context, table string, q []float32, opts SearchOptions) ([]SearchResult, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if err := vectorcodec.ValidateDimensions(q, ix.dims); err != nil {
		return nil, err
	}
	opts = opts.Normalize()

	candidates, err := ix.scanTable(ctx, table, q, opts)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	return candidates, nil
}

// FindSimilar fetches table/id's own embedding and runs SemanticSearch
// with it, filtering the target row out of the results.
func (ix *Index) FindSimilar(ctx context.Context, table, id string, opts SearchOptions) ([]SearchResult, error) {
	v, ok, err := ix.GetEmbedding(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoEmbedding, table, id)
	}

	normalized := opts.Normalize()
	// Over-fetch by one so the excluded self-match doesn't shrink the
	// caller's requested limit.
	searchOpts := normalized
	searchOpts.Limit++

	results, err := ix.SemanticSearch(ctx, v, searchOpts)
	if err != nil {
		return nil, err
	}

	filtered := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Type == tableTag(table) && r.ID == id {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) > normalized.Limit {
		filtered = filtered[:normalized.Limit]
	}
	return filtered, nil
}

func (ix *Index) scanTable(ctx context.Context, table string, q []float32, opts SearchOptions) ([]SearchResult, error) {
	query, args := buildScanQuery(table, opts)
	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: scan %s: %w", table, err)
	}
	defer rows.Close()

	tag := tableTag(table)
	var out []SearchResult
	for rows.Next() {
		var id, content string
		var embedding []byte
		var metadata sql.NullString
		if err := rows.Scan(&id, &content, &embedding, &metadata); err != nil {
			return nil, fmt.Errorf("vectorindex: scan row %s: %w", table, err)
		}

		emb, err := vectorcodec.Deserialize(embedding)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: decode embedding %s/%s: %w", table, id, err)
		}
		if len(emb) != len(q) {
			continue
		}

		score, err := vectorcodec.Cosine(q, emb)
		if err != nil {
			return nil, err
		}
		if score < opts.Threshold {
			continue
		}

		opened, err := openContent(ix.sealer, content)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: open content %s/%s: %w", table, id, err)
		}

		result := SearchResult{ID: id, Content: opened, Similarity: score, Type: tag}
		if opts.includeMetadata() && metadata.Valid {
			result.Metadata = []byte(metadata.String)
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// buildScanQuery composes the per-table scan query, applying only the
// scope filters that table's schema actually carries.
func buildScanQuery(table string, opts SearchOptions) (string, []any) {
	clauses := []string{"embedding IS NOT NULL"}
	var args []any

	switch table {
	case db.TableRules:
		if opts.Tier != nil {
			clauses = append(clauses, "tier = ?")
			args = append(args, *opts.Tier)
		}
		if tagClause, tagArgs := tagFilter(opts.Tags); tagClause != "" {
			clauses = append(clauses, tagClause)
			args = append(args, tagArgs...)
		}
	case db.TableProjectDocs:
		if opts.ProjectID != "" {
			clauses = append(clauses, "project_id = ?")
			args = append(args, opts.ProjectID)
		}
		if tagClause, tagArgs := tagFilter(opts.Tags); tagClause != "" {
			clauses = append(clauses, tagClause)
			args = append(args, tagArgs...)
		}
	case db.TableRefs:
		if opts.ChannelID != "" {
			clauses = append(clauses, "channel_id = ?")
			args = append(args, opts.ChannelID)
		}
	}

	query := fmt.Sprintf("SELECT id, content, embedding, metadata FROM %s WHERE %s",
		table, strings.Join(clauses, " AND "))
	return query, args
}

// tagFilter builds the coarse substring-OR tag filter shared with
// storage.RuleStore.FindByTags: any(tags LIKE '%"tag"%').
func tagFilter(tags []string) (string, []any) {
	if len(tags) == 0 {
		return "", nil
	}
	parts := make([]string, len(tags))
	args := make([]any, len(tags))
	for i, tag := range tags {
		parts[i] = "tags LIKE ?"
		args[i] = "%\"" + tag + "\"%"
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
