package vectorindex

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/vectorcodec"
)

// Index binds embedding persistence and similarity search to a single
// checked-out connection. It is ephemeral per call: constructed against
// a connection's *sql.DB handle and discarded when the connection is
// released, per the facade's per-operation lifecycle.
type Index struct {
	db     *sql.DB
	dims   int
	sealer ContentSealer
}

// New binds an Index to sqlDB, validating vectors against dims. A
// dims <= 0 disables dimension validation. An optional ContentSealer
// opens content sealed at rest by the storage layer before it is
// returned in a SearchResult; omit it when content isn't sealed.
func New(sqlDB *sql.DB, dims int, sealer ...ContentSealer) *Index {
	ix := &Index{db: sqlDB, dims: dims}
	if len(sealer) > 0 {
		ix.sealer = sealer[0]
	}
	return ix
}

func allTables() []string {
	return []string{db.TableRules, db.TableProjectDocs, db.TableRefs}
}

// tableTag maps an allowlisted table name to the SearchResult.Type tag.
func tableTag(table string) string {
	switch table {
	case db.TableRules:
		return "rule"
	case db.TableProjectDocs:
		return "project_doc"
	case db.TableRefs:
		return "ref"
	default:
		return table
	}
}

func validateTable(table string) error {
	switch table {
	case db.TableRules, db.TableProjectDocs, db.TableRefs:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
}

// StoreEmbedding dimension-checks v and writes it to table's embedding
// column for id.
func (ix *Index) StoreEmbedding(ctx context.Context, table, id string, v []float32) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if err := vectorcodec.ValidateDimensions(v, ix.dims); err != nil {
		return err
	}
	_, err := ix.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET embedding = ? WHERE id = ?", table),
		vectorcodec.Serialize(v), id,
	)
	if err != nil {
		return fmt.Errorf("vectorindex: store embedding %s/%s: %w", table, id, err)
	}
	return nil
}

// GetEmbedding returns the deserialized vector for table/id, or
// (_, false, nil) if the row is missing or its embedding column is NULL.
func (ix *Index) GetEmbedding(ctx context.Context, table, id string) ([]float32, bool, error) {
	if err := validateTable(table); err != nil {
		return nil, false, err
	}
	var raw sql.NullString
	err := ix.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT embedding FROM %s WHERE id = ?", table), id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("vectorindex: get embedding %s/%s: %w", table, id, err)
	}
	if !raw.Valid {
		return nil, false, nil
	}
	v, err := vectorcodec.Deserialize([]byte(raw.String))
	if err != nil {
		return nil, false, fmt.Errorf("vectorindex: decode embedding %s/%s: %w", table, id, err)
	}
	return v, true, nil
}

// EmbeddingItem names one row whose embedding BatchStoreEmbeddings should write.
type EmbeddingItem struct {
	Table  string
	ID     string
	Vector []float32
}

// BatchStoreEmbeddings writes every item inside a single transaction,
// rolling back wholly if any item fails validation or the write.
func (ix *Index) BatchStoreEmbeddings(ctx context.Context, items []EmbeddingItem) error {
	for _, it := range items {
		if err := validateTable(it.Table); err != nil {
			return err
		}
		if err := vectorcodec.ValidateDimensions(it.Vector, ix.dims); err != nil {
			return err
		}
	}
	return db.WithTransaction(ctx, ix.db, func(tx *sql.Tx) error {
		for _, it := range items {
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET embedding = ? WHERE id = ?", it.Table),
				vectorcodec.Serialize(it.Vector), it.ID,
			)
			if err != nil {
				return fmt.Errorf("vectorindex: batch store %s/%s: %w", it.Table, it.ID, err)
			}
		}
		return nil
	})
}

// ClearEmbeddings nulls the embedding column of table. An empty table
// clears all three allowlisted tables.
func (ix *Index) ClearEmbeddings(ctx context.Context, table string) error {
	if table == "" {
		for _, t := range allTables() {
			if err := ix.ClearEmbeddings(ctx, t); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validateTable(table); err != nil {
		return err
	}
	_, err := ix.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET embedding = NULL", table))
	if err != nil {
		return fmt.Errorf("vectorindex: clear embeddings %s: %w", table, err)
	}
	return nil
}

// TableStats reports row and embedded-row counts for a single table.
type TableStats struct {
	Table        string
	TotalRows    int64
	EmbeddedRows int64
}

// Stats aggregates TableStats across all three tables.
type Stats struct {
	PerTable      []TableStats
	TotalRows     int64
	TotalEmbedded int64
}

// GetIndexStats counts total and embedded rows per table concurrently,
// then aggregates.
func (ix *Index) GetIndexStats(ctx context.Context) (Stats, error) {
	tables := allTables()
	results := make([]TableStats, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			var total, embedded int64
			err := ix.db.QueryRowContext(gctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&total)
			if err != nil {
				return fmt.Errorf("vectorindex: count %s: %w", table, err)
			}
			err = ix.db.QueryRowContext(gctx,
				fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE embedding IS NOT NULL", table),
			).Scan(&embedded)
			if err != nil {
				return fmt.Errorf("vectorindex: count embedded %s: %w", table, err)
			}
			results[i] = TableStats{Table: table, TotalRows: total, EmbeddedRows: embedded}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{PerTable: results}
	for _, r := range results {
		stats.TotalRows += r.TotalRows
		stats.TotalEmbedded += r.EmbeddedRows
	}
	return stats, nil
}
