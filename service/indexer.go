package service

import (
	"consultant/model"
	"consultant/store"
	"consultant/types"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type IndexStats struct {
	Documents int
	Chunks    int
	Embedded  int
}

// Indexer fills a VectorStore with embedded chunks and answers searches
// against it. The embedding identity is fixed when the indexer is created.
type Indexer struct {
	store       store.VectorStore
	embedder    model.Embedder
	identity    model.Identity
	fingerprint string
	logger      *slog.Logger
}

// NewIndexer probes the embedder and binds the store to its identity.
func NewIndexer(ctx context.Context, st store.VectorStore, embedder model.Embedder, logger *slog.Logger) (*Indexer, error) {
	identity, err := model.Probe(ctx, embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndex, err)
	}
	if err := st.Init(ctx, identity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndex, err)
	}
	logger.Info("vector store ready", "embedding", identity.String())

	return &Indexer{
		store:    st,
		embedder: embedder,
		identity: identity,
		logger:   logger,
	}, nil
}

// Index stores every chunk of docs. Chunks already in the store are not
// embedded again, and chunks or documents that are no longer part of docs
// are removed. Once indexing succeeds a store that supports sealing is
// made read-only.
func (ix *Indexer) Index(ctx context.Context, docs []types.Document) (IndexStats, error) {
	start := time.Now()
	var stats IndexStats

	docIDs := make([]uuid.UUID, 0, len(docs))
	hash := sha256.New()
	hash.Write([]byte(ix.identity.String()))

	for _, doc := range docs {
		docIDs = append(docIDs, doc.ID)

		ids := make([]uuid.UUID, len(doc.Chunks))
		for i, c := range doc.Chunks {
			ids[i] = c.ID
			hash.Write(c.ID[:])
		}

		existing, err := ix.store.Existing(ctx, ids)
		if err != nil {
			return stats, fmt.Errorf("%w: lookup chunks of %s: %w", ErrIndex, doc.Title, err)
		}

		var fresh []types.Chunk
		for _, c := range doc.Chunks {
			if existing[c.ID] {
				continue
			}
			vec, err := ix.embedder.Embed(ctx, c.Content)
			if err != nil {
				return stats, fmt.Errorf("%w: embed %s chunk %d: %w", ErrIndex, doc.Title, c.Position, err)
			}
			c.Embedding = vec
			fresh = append(fresh, c)
		}

		if err := ix.store.ReplaceDocument(ctx, doc, fresh); err != nil {
			return stats, fmt.Errorf("%w: store %s: %w", ErrIndex, doc.Title, err)
		}

		stats.Documents++
		stats.Chunks += len(doc.Chunks)
		stats.Embedded += len(fresh)
		ix.logger.Debug("document indexed", "title", doc.Title, "chunks", len(doc.Chunks), "embedded", len(fresh))
	}

	if err := ix.store.Prune(ctx, docIDs); err != nil {
		return stats, fmt.Errorf("%w: prune: %w", ErrIndex, err)
	}

	if s, ok := ix.store.(interface{ Seal() }); ok {
		s.Seal()
	}
	ix.fingerprint = hex.EncodeToString(hash.Sum(nil))

	ix.logger.Info("index built",
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"embedded", stats.Embedded,
		"took", time.Since(start))
	return stats, nil
}

func (ix *Indexer) Search(ctx context.Context, vec []float32, k int) ([]types.ScoredChunk, error) {
	return ix.store.Search(ctx, vec, k)
}

func (ix *Indexer) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}

func (ix *Indexer) Identity() model.Identity {
	return ix.identity
}

// Fingerprint identifies the indexed chunk set and embedding identity. It
// is empty until Index has succeeded.
func (ix *Indexer) Fingerprint() string {
	return ix.fingerprint
}
