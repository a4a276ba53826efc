package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "docs.db"), func(o *Options) {
		o.IndexPath = filepath.Join(dir, "index.json")
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func addDoc(t *testing.T, store *Store, title, content string, embedding []float32) string {
	t.Helper()
	id, err := store.AddDocument(context.Background(), core.DocumentRecord{
		Title:   title,
		Content: content,
	}, embedding)
	require.NoError(t, err)
	return id
}

func TestAddAndGetDocument(t *testing.T) {
	store := newTestStore(t)

	id := addDoc(t, store, "Go Basics", "Goroutines are lightweight threads.", []float32{1, 0, 0})

	doc, err := store.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Go Basics", doc.Title)
	assert.Equal(t, core.DocumentActive, doc.Status)
	require.NotNil(t, doc.Ordinal)
	assert.Equal(t, 0, *doc.Ordinal)

	missing, err := store.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrdinalInsertionOrder(t *testing.T) {
	store := newTestStore(t)

	withVec := addDoc(t, store, "a", "alpha", []float32{1, 0})
	addDoc(t, store, "b", "beta", nil)
	second := addDoc(t, store, "c", "gamma", []float32{0, 1})

	first, err := store.GetByID(withVec)
	require.NoError(t, err)
	require.NotNil(t, first.Ordinal)
	assert.Equal(t, 0, *first.Ordinal)

	doc, err := store.GetByID(second)
	require.NoError(t, err)
	require.NotNil(t, doc.Ordinal)
	assert.Equal(t, 1, *doc.Ordinal)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, 2, stats.Vectors)
	assert.Equal(t, 2, stats.Dimension)
}

func TestSemanticSearchExcludesDeleted(t *testing.T) {
	store := newTestStore(t)

	near := addDoc(t, store, "near", "closest document", []float32{1, 0})
	far := addDoc(t, store, "far", "distant document", []float32{0, 1})

	matches, err := store.Search(context.Background(), "", []float32{0.9, 0.1}, core.SearchSemantic, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, near, matches[0].ID)
	assert.Equal(t, core.TierSemantic, matches[0].Tier)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)

	// Soft deletion hides the record but keeps its vector.
	require.NoError(t, store.SoftDelete(near))
	matches, err = store.Search(context.Background(), "", []float32{0.9, 0.1}, core.SearchSemantic, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, far, matches[0].ID)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveDocuments)
	assert.Equal(t, 2, stats.Vectors)
}

func TestFullTextSearch(t *testing.T) {
	store := newTestStore(t)

	addDoc(t, store, "Concurrency", "Channels synchronize goroutines.", nil)
	addDoc(t, store, "Cooking", "Pasta needs salted water.", nil)

	matches, err := store.Search(context.Background(), "goroutines", nil, core.SearchFullText, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Concurrency", matches[0].Title)
	assert.Equal(t, core.TierFullText, matches[0].Tier)
	assert.InDelta(t, 0.8, matches[0].Similarity, 1e-9)
}

func TestKeywordSearchSubstring(t *testing.T) {
	store := newTestStore(t)

	addDoc(t, store, "Errors", "Wrap errors with context for callers.", nil)

	// Substring match works where tokenized full-text would miss.
	matches, err := store.Search(context.Background(), "rror", nil, core.SearchKeyword, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.TierKeyword, matches[0].Tier)
	assert.InDelta(t, 0.6, matches[0].Similarity, 1e-9)
}

func TestHybridSearchTierOrderNoDuplicates(t *testing.T) {
	store := newTestStore(t)

	semantic := addDoc(t, store, "vectors", "semantic only text", []float32{1, 0})
	textual := addDoc(t, store, "textual", "hybrid search explained", nil)

	matches, err := store.Search(context.Background(), "hybrid semantic", []float32{1, 0}, core.SearchHybrid, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, semantic, matches[0].ID)
	assert.Equal(t, core.TierSemantic, matches[0].Tier)
	assert.Equal(t, textual, matches[1].ID)
	assert.Equal(t, core.TierFullText, matches[1].Tier)

	ids := map[string]int{}
	for _, m := range matches {
		ids[m.ID]++
	}
	for id, n := range ids {
		assert.Equalf(t, 1, n, "document %s surfaced %d times", id, n)
	}
}

func TestHybridSearchEmptyStore(t *testing.T) {
	store := newTestStore(t)

	matches, err := store.Search(context.Background(), "anything", []float32{1, 0}, core.SearchHybrid, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSnapshotPrecedesMetadataRow(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.json")
	store, err := NewStore(filepath.Join(dir, "docs.db"), func(o *Options) {
		o.IndexPath = indexPath
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	doc := core.DocumentRecord{ID: "fixed-id", Title: "once", Content: "first write"}
	_, err = store.AddDocument(context.Background(), doc, []float32{1, 0})
	require.NoError(t, err)

	// A duplicate id fails the metadata insert after the vector has already
	// been appended and snapshotted, leaving a trailing unreferenced vector.
	_, err = store.AddDocument(context.Background(), doc, []float32{0, 1})
	require.Error(t, err)

	restored, err := LoadVectorIndex(indexPath)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())

	// Every persisted ordinal stays within the restored index.
	kept, err := store.GetByID("fixed-id")
	require.NoError(t, err)
	require.NotNil(t, kept.Ordinal)
	assert.Less(t, *kept.Ordinal, restored.Len())

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 2, stats.Vectors)
}

func TestVectorIndexSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	idx := NewVectorIndex()
	_, err := idx.Append([]float32{1, 2, 3})
	require.NoError(t, err)
	_, err = idx.Append([]float32{4, 5, 6})
	require.NoError(t, err)
	require.NoError(t, idx.Save(path))

	restored, err := LoadVectorIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, 3, restored.Dimension())

	hits, err := restored.Search([]float32{1, 2, 3}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Ordinal)
	assert.Zero(t, hits[0].Distance)
}

func TestVectorIndexDimensionMismatch(t *testing.T) {
	idx := NewVectorIndex()
	_, err := idx.Append([]float32{1, 2})
	require.NoError(t, err)

	_, err = idx.Append([]float32{1, 2, 3})
	assert.Error(t, err)

	_, err = idx.Search([]float32{1}, 5)
	assert.Error(t, err)
}
