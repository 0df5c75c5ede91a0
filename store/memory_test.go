package store

import (
	"consultant/model"
	"consultant/types"
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = model.Identity{Model: "test:unit", Dimension: 2}

func chunk(doc uuid.UUID, pos int, vec ...float32) types.Chunk {
	return types.Chunk{ID: uuid.New(), DocID: doc, Position: pos, Content: "c", Embedding: vec}
}

func newStore(t *testing.T) *MemoryStore {
	t.Helper()
	m := NewMemoryStore()
	require.NoError(t, m.Init(context.Background(), testIdentity))
	return m
}

func TestMemoryStore_SearchEmpty(t *testing.T) {
	hits, err := newStore(t).Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestMemoryStore_SearchOmitsEmbeddings(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)
	doc := types.Document{ID: uuid.New()}
	doc.Chunks = []types.Chunk{chunk(doc.ID, 0, 1, 0), chunk(doc.ID, 1, 0, 1)}
	require.NoError(t, m.ReplaceDocument(ctx, doc, doc.Chunks))

	hits, err := m.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Nil(t, h.Embedding)
	}
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	// the stored vectors are untouched
	hits, err = m.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, doc.Chunks[1].ID, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestMemoryStore_SearchOrdersByScoreThenDocOrderThenPosition(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	first := types.Document{ID: uuid.New(), Order: 0}
	second := types.Document{ID: uuid.New(), Order: 1}

	a := chunk(second.ID, 0, 1, 0)
	b := chunk(first.ID, 1, 1, 0)
	c := chunk(first.ID, 0, 1, 0)
	d := chunk(first.ID, 2, 0, 1)
	second.Chunks = []types.Chunk{a}
	first.Chunks = []types.Chunk{c, b, d}

	require.NoError(t, m.ReplaceDocument(ctx, second, second.Chunks))
	require.NoError(t, m.ReplaceDocument(ctx, first, first.Chunks))

	hits, err := m.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, c.ID, hits[0].ID)
	assert.Equal(t, b.ID, hits[1].ID)
	assert.Equal(t, a.ID, hits[2].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	hits, err = m.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 4)
	assert.InDelta(t, 0.0, hits[3].Score, 1e-9)
}

func TestMemoryStore_ReplaceDocumentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	doc := types.Document{ID: uuid.New()}
	doc.Chunks = []types.Chunk{chunk(doc.ID, 0, 1, 0), chunk(doc.ID, 1, 0, 1)}

	require.NoError(t, m.ReplaceDocument(ctx, doc, doc.Chunks))
	require.NoError(t, m.ReplaceDocument(ctx, doc, doc.Chunks))

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids := []uuid.UUID{doc.Chunks[0].ID, doc.Chunks[1].ID, uuid.New()}
	found, err := m.Existing(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]bool{ids[0]: true, ids[1]: true}, found)
}

func TestMemoryStore_ReplaceDocumentRemovesStaleChunks(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	doc := types.Document{ID: uuid.New()}
	old := chunk(doc.ID, 0, 1, 0)
	doc.Chunks = []types.Chunk{old}
	require.NoError(t, m.ReplaceDocument(ctx, doc, doc.Chunks))

	updated := chunk(doc.ID, 0, 0, 1)
	doc.Chunks = []types.Chunk{updated}
	require.NoError(t, m.ReplaceDocument(ctx, doc, doc.Chunks))

	found, err := m.Existing(ctx, []uuid.UUID{old.ID, updated.ID})
	require.NoError(t, err)
	assert.False(t, found[old.ID])
	assert.True(t, found[updated.ID])
}

func TestMemoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	keep := types.Document{ID: uuid.New()}
	keep.Chunks = []types.Chunk{chunk(keep.ID, 0, 1, 0)}
	gone := types.Document{ID: uuid.New(), Order: 1}
	gone.Chunks = []types.Chunk{chunk(gone.ID, 0, 0, 1)}
	require.NoError(t, m.ReplaceDocument(ctx, keep, keep.Chunks))
	require.NoError(t, m.ReplaceDocument(ctx, gone, gone.Chunks))

	require.NoError(t, m.Prune(ctx, []uuid.UUID{keep.ID}))
	n, _ := m.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_IdentityMismatch(t *testing.T) {
	m := newStore(t)
	err := m.Init(context.Background(), model.Identity{Model: "other", Dimension: 2})
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	assert.NoError(t, m.Init(context.Background(), testIdentity))
}

func TestMemoryStore_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	doc := types.Document{ID: uuid.New()}
	doc.Chunks = []types.Chunk{chunk(doc.ID, 0, 1, 0, 0)}
	assert.ErrorIs(t, m.ReplaceDocument(ctx, doc, doc.Chunks), ErrDimension)

	doc.Chunks = []types.Chunk{chunk(doc.ID, 0, 1, 0)}
	require.NoError(t, m.ReplaceDocument(ctx, doc, doc.Chunks))
	_, err := m.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestMemoryStore_SealedRejectsWritesAndServesConcurrentReads(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	doc := types.Document{ID: uuid.New()}
	doc.Chunks = []types.Chunk{chunk(doc.ID, 0, 1, 0), chunk(doc.ID, 1, 0, 1)}
	require.NoError(t, m.ReplaceDocument(ctx, doc, doc.Chunks))
	m.Seal()

	assert.ErrorIs(t, m.ReplaceDocument(ctx, doc, nil), ErrSealed)
	assert.ErrorIs(t, m.Prune(ctx, nil), ErrSealed)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := m.Search(ctx, []float32{1, 0}, 1)
			assert.NoError(t, err)
			assert.Len(t, hits, 1)
		}()
	}
	wg.Wait()
}
