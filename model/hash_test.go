package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "Refunds are processed within 14 days.")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "refunds are PROCESSED within 14 days")
	require.NoError(t, err)

	require.Len(t, v1, DefaultHashDimension)
	assert.InDelta(t, 1.0, dot(v1, v2), 1e-6)
	assert.Equal(t, "hash:fnv-256", e.Name())
}

func TestHashEmbedder_OverlapRanksHigher(t *testing.T) {
	e := NewHashEmbedder(512)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "What is the refund policy?")
	refund, _ := e.Embed(ctx, "Our refund policy: refunds are processed within 14 days.")
	ads, _ := e.Embed(ctx, "Google Ads campaigns need a daily budget.")

	assert.Greater(t, dot(q, refund), dot(q, ads))
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	vec, err := NewHashEmbedder(8).Embed(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vec)
}

func TestProbe(t *testing.T) {
	id, err := Probe(context.Background(), NewHashEmbedder(32))
	require.NoError(t, err)
	assert.Equal(t, Identity{Model: "hash:fnv-32", Dimension: 32}, id)
	assert.Equal(t, "hash:fnv-32/32", id.String())
}
