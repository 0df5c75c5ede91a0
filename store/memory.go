package store

import (
	"consultant/model"
	"consultant/types"
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process VectorStore. After Seal it rejects writes
// and is safe for any number of concurrent readers.
type MemoryStore struct {
	mu       sync.RWMutex
	identity *model.Identity
	order    map[uuid.UUID]int
	chunks   map[uuid.UUID]types.Chunk
	sealed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		order:  make(map[uuid.UUID]int),
		chunks: make(map[uuid.UUID]types.Chunk),
	}
}

func (m *MemoryStore) Init(_ context.Context, id model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity != nil && *m.identity != id {
		return IdentityError(*m.identity, id)
	}
	m.identity = &id
	return nil
}

func (m *MemoryStore) Existing(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if _, ok := m.chunks[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (m *MemoryStore) ReplaceDocument(_ context.Context, doc types.Document, fresh []types.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return ErrSealed
	}
	for _, c := range fresh {
		if m.identity != nil && len(c.Embedding) != m.identity.Dimension {
			return ErrDimension
		}
	}

	m.order[doc.ID] = doc.Order

	keep := make(map[uuid.UUID]bool, len(doc.Chunks))
	for _, c := range doc.Chunks {
		keep[c.ID] = true
	}
	for id, c := range m.chunks {
		if c.DocID == doc.ID && !keep[id] {
			delete(m.chunks, id)
		}
	}
	for _, c := range fresh {
		if _, ok := m.chunks[c.ID]; ok {
			continue
		}
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MemoryStore) Prune(_ context.Context, keep []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return ErrSealed
	}
	alive := make(map[uuid.UUID]bool, len(keep))
	for _, id := range keep {
		alive[id] = true
	}
	for id := range m.order {
		if !alive[id] {
			delete(m.order, id)
		}
	}
	for id, c := range m.chunks {
		if !alive[c.DocID] {
			delete(m.chunks, id)
		}
	}
	return nil
}

// Seal makes the store read-only.
func (m *MemoryStore) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

func (m *MemoryStore) Search(_ context.Context, vec []float32, k int) ([]types.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 || len(m.chunks) == 0 {
		return []types.ScoredChunk{}, nil
	}
	if m.identity != nil && len(vec) != m.identity.Dimension {
		return nil, ErrDimension
	}

	hits := make([]types.ScoredChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		score := cosine(vec, c.Embedding)
		c.Embedding = nil
		hits = append(hits, types.ScoredChunk{Chunk: c, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if oa, ob := m.order[a.DocID], m.order[b.DocID]; oa != ob {
			return oa < ob
		}
		return a.Position < b.Position
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
