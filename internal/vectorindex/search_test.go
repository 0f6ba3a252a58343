package vectorindex_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/memvault/internal/crypto"
	"github.com/thebtf/memvault/internal/db"
	"github.com/thebtf/memvault/internal/storage"
	"github.com/thebtf/memvault/internal/vectorindex"
)

// TestSemanticSearchSelfHit covers S3: searching with a stored row's own
// embedding surfaces that row first with similarity ~= 1.
func TestSemanticSearchSelfHit(t *testing.T) {
	sqlDB := openTestDB(t)
	insertRule(t, sqlDB, "r1")
	insertRule(t, sqlDB, "r2")
	ix := vectorindex.New(sqlDB, testDims)
	ctx := context.Background()

	e1 := unitVector(testDims, 0)
	e2 := unitVector(testDims, 1)
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "r1", e1))
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "r2", e2))

	results, err := ix.SemanticSearch(ctx, e1, vectorindex.SearchOptions{Limit: 10, Threshold: 0.1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "r1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 0.001)
}

// TestSemanticSearchCrossTable covers S4: one row per table sharing the
// same embedding should all surface with scores ~= 1.
func TestSemanticSearchCrossTable(t *testing.T) {
	sqlDB := openTestDB(t)
	insertRule(t, sqlDB, "r1")
	insertProjectDoc(t, sqlDB, "d1")
	insertRef(t, sqlDB, "f1")
	ix := vectorindex.New(sqlDB, testDims)
	ctx := context.Background()

	e := unitVector(testDims, 3)
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "r1", e))
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableProjectDocs, "d1", e))
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRefs, "f1", e))

	results, err := ix.SemanticSearch(ctx, e, vectorindex.SearchOptions{Limit: 3, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 3)

	types := map[string]bool{}
	for _, r := range results {
		types[r.Type] = true
		assert.InDelta(t, 1.0, r.Similarity, 0.001)
	}
	assert.True(t, types["rule"])
	assert.True(t, types["project_doc"])
	assert.True(t, types["ref"])
}

// TestSemanticSearchCompleteness covers property 13: every embedded row
// whose cosine score meets the threshold appears in the result set.
func TestSemanticSearchCompleteness(t *testing.T) {
	sqlDB := openTestDB(t)
	ix := vectorindex.New(sqlDB, testDims)
	ctx := context.Background()

	q := unitVector(testDims, 0)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		insertRule(t, sqlDB, id)
		require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, id, q))
	}

	results, err := ix.SemanticSearch(ctx, q, vectorindex.SearchOptions{Limit: 1000, Threshold: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

// TestSemanticSearchOrdering covers property 14: results sort by
// similarity score descending.
func TestSemanticSearchOrdering(t *testing.T) {
	sqlDB := openTestDB(t)
	ix := vectorindex.New(sqlDB, testDims)
	ctx := context.Background()

	insertRule(t, sqlDB, "close")
	insertRule(t, sqlDB, "far")

	q := make([]float32, testDims)
	q[0], q[1] = 1, 0.01

	closeVec := make([]float32, testDims)
	closeVec[0] = 1
	farVec := make([]float32, testDims)
	farVec[0], farVec[1] = 0.6, 0.6

	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "close", closeVec))
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "far", farVec))

	results, err := ix.SemanticSearch(ctx, q, vectorindex.SearchOptions{Limit: 10, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
}

// TestFindSimilarExcludesSelf covers property 16.
func TestFindSimilarExcludesSelf(t *testing.T) {
	sqlDB := openTestDB(t)
	insertRule(t, sqlDB, "r1")
	insertRule(t, sqlDB, "r2")
	ix := vectorindex.New(sqlDB, testDims)
	ctx := context.Background()

	e := unitVector(testDims, 4)
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "r1", e))
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "r2", e))

	results, err := ix.FindSimilar(ctx, db.TableRules, "r1", vectorindex.SearchOptions{Limit: 10, Threshold: 0.1})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "r1", r.ID)
	}
	require.Len(t, results, 1)
	assert.Equal(t, "r2", results[0].ID)
}

func TestFindSimilarFailsWithoutEmbedding(t *testing.T) {
	sqlDB := openTestDB(t)
	insertRule(t, sqlDB, "r1")
	ix := vectorindex.New(sqlDB, testDims)

	_, err := ix.FindSimilar(context.Background(), db.TableRules, "r1", vectorindex.SearchOptions{})
	assert.ErrorIs(t, err, vectorindex.ErrNoEmbedding)
}

func TestSearchInTableScopesToOneTable(t *testing.T) {
	sqlDB := openTestDB(t)
	insertRule(t, sqlDB, "r1")
	insertProjectDoc(t, sqlDB, "d1")
	ix := vectorindex.New(sqlDB, testDims)
	ctx := context.Background()

	e := unitVector(testDims, 0)
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableRules, "r1", e))
	require.NoError(t, ix.StoreEmbedding(ctx, db.TableProjectDocs, "d1", e))

	results, err := ix.SearchInTable(ctx, db.TableRules, e, vectorindex.SearchOptions{Limit: 10, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rule", results[0].Type)
}

func TestSemanticSearchRejectsDimensionMismatch(t *testing.T) {
	sqlDB := openTestDB(t)
	ix := vectorindex.New(sqlDB, testDims)

	_, err := ix.SemanticSearch(context.Background(), make([]float32, testDims+1), vectorindex.SearchOptions{})
	assert.Error(t, err)
}

// TestSemanticSearchOpensSealedContent covers rows written with content
// sealed at rest: without a sealer wired into the Index, a search would
// surface base64 ciphertext instead of the original text.
func TestSemanticSearchOpensSealedContent(t *testing.T) {
	sqlDB := openTestDB(t)
	sealer, err := crypto.NewSealer("top-secret-key")
	require.NoError(t, err)

	store := storage.NewRuleStore(sqlDB, sealer)
	_, err = store.Create(context.Background(), storage.Rule{ID: "r1", Content: "classified content", Tier: 1})
	require.NoError(t, err)

	ix := vectorindex.New(sqlDB, testDims, sealer)
	e := unitVector(testDims, 0)
	require.NoError(t, ix.StoreEmbedding(context.Background(), db.TableRules, "r1", e))

	results, err := ix.SemanticSearch(context.Background(), e, vectorindex.SearchOptions{Limit: 10, Threshold: 0.1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "classified content", results[0].Content)
}
