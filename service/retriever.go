package service

import (
	"consultant/model"
	"consultant/types"
	"context"
	"fmt"
)

// Searcher is the read side of an index.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]types.ScoredChunk, error)
	Identity() model.Identity
}

type Retriever struct {
	index    Searcher
	embedder model.Embedder
	topK     int
	minScore float64
}

// NewRetriever refuses an embedder whose identity differs from the one the
// index was built with.
func NewRetriever(index Searcher, embedder model.Embedder, topK int, minScore float64) (*Retriever, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", topK)
	}
	if got, want := embedder.Name(), index.Identity().Model; got != want {
		return nil, fmt.Errorf("embedder %s does not match index built with %s", got, want)
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		topK:     topK,
		minScore: minScore,
	}, nil
}

// Retrieve returns at most topK chunks for question, best first. Hits
// scoring below minScore are dropped.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]types.ScoredChunk, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if dim := r.index.Identity().Dimension; len(vec) != dim {
		return nil, fmt.Errorf("question vector has %d dimensions, index has %d", len(vec), dim)
	}

	hits, err := r.index.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return filterChunks(hits, r.minScore), nil
}

func filterChunks(hits []types.ScoredChunk, minScore float64) []types.ScoredChunk {
	out := make([]types.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Score >= minScore {
			out = append(out, h)
		}
	}
	return out
}
