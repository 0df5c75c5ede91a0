package model

import (
	"consultant/config"
	"context"
	"fmt"
	"math"
)

// Embedder turns text into a fixed-size vector. Name identifies the
// provider and model so an index is never queried with vectors from a
// different embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Identity is the embedding space an index was built in.
type Identity struct {
	Model     string
	Dimension int
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%d", i.Model, i.Dimension)
}

// probeText is embedded once at startup to learn the vector dimension and
// to fail fast when the embedding runtime is not reachable.
const probeText = "dimension probe"

// Probe returns the identity of the embedding space e produces.
func Probe(ctx context.Context, e Embedder) (Identity, error) {
	vec, err := e.Embed(ctx, probeText)
	if err != nil {
		return Identity{}, fmt.Errorf("probe embedder %s: %w", e.Name(), err)
	}
	if len(vec) == 0 {
		return Identity{}, fmt.Errorf("probe embedder %s: empty vector", e.Name())
	}
	return Identity{Model: e.Name(), Dimension: len(vec)}, nil
}

// normalize64 scales vec to unit length and converts it to float32.
func normalize64(vec []float64) []float32 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(vec))
	for i, x := range vec {
		if norm == 0 {
			out[i] = float32(x)
			continue
		}
		out[i] = float32(x / norm)
	}
	return out
}

// NewEmbedder builds the embedder selected by configuration.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaEmbedder(cfg.URL, cfg.Model), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.URL, cfg.APIKey, cfg.Model), nil
	case "hash":
		return NewHashEmbedder(DefaultHashDimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
