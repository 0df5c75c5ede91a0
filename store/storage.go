package store

import (
	"consultant/model"
	"consultant/types"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrIdentityMismatch = errors.New("index was built with a different embedding model")
	ErrSealed           = errors.New("index is sealed")
	ErrDimension        = errors.New("vector dimension does not match the index")
)

// VectorStore keeps document chunks with their embeddings and answers
// nearest-neighbour queries by cosine similarity.
type VectorStore interface {
	// Init prepares the store for vectors of the given identity. A store
	// that already holds vectors of another identity returns
	// ErrIdentityMismatch.
	Init(ctx context.Context, id model.Identity) error
	// Existing reports which of ids are already stored.
	Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	// ReplaceDocument saves doc, inserts fresh (which must carry
	// embeddings) and removes chunks of doc that are not in doc.Chunks.
	ReplaceDocument(ctx context.Context, doc types.Document, fresh []types.Chunk) error
	// Prune removes every document not listed in keep, with its chunks.
	Prune(ctx context.Context, keep []uuid.UUID) error
	// Search returns up to k chunks ordered by descending score, ties by
	// document order then chunk position.
	Search(ctx context.Context, vec []float32, k int) ([]types.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

func IdentityError(stored, current model.Identity) error {
	return fmt.Errorf("%w: stored %s, configured %s", ErrIdentityMismatch, stored, current)
}
