package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OllamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		w.Write([]byte(`{"embedding": [3, 4]}`))
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL, "nomic-embed-text")
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, vec, 2)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
	assert.Equal(t, "ollama:nomic-embed-text", e.Name())
}

func TestOllamaEmbedder_EmbedBatchReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings": [[0, 2, 0]]}`))
	}))
	defer server.Close()

	vec, err := NewOllamaEmbedder(server.URL, "m").Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vec)
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	t.Run("server error is unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := NewOllamaEmbedder(server.URL, "m").Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("empty embedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"embedding": []}`))
		}))
		defer server.Close()

		_, err := NewOllamaEmbedder(server.URL, "m").Embed(context.Background(), "x")
		assert.Error(t, err)
	})
}

func TestOllamaLLM_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "phi3:mini", req.Model)
		assert.Equal(t, "be brief", req.System)
		assert.Equal(t, "question?", req.Prompt)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.2, req.Options.Temperature, 1e-9)
		assert.Equal(t, 64, req.Options.NumPredict)
		w.Write([]byte(`{"response": " Answer. ", "done": true, "done_reason": "stop"}`))
	}))
	defer server.Close()

	out, err := NewOllamaLLM(server.URL).Generate(context.Background(), "be brief", "question?",
		Params{Model: "phi3:mini", Temperature: 0.2, MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Answer.", out.Text)
	assert.False(t, out.Truncated)
}

func TestOllamaLLM_GenerateStreamedAndTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"Hel","done":false}
{"response":"lo","done":false}
{"response":"","done":true,"done_reason":"length"}
`))
	}))
	defer server.Close()

	out, err := NewOllamaLLM(server.URL).Generate(context.Background(), "", "p", Params{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", out.Text)
	assert.True(t, out.Truncated)
}

func TestOllamaLLM_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewOllamaLLM(url).Generate(context.Background(), "", "p", Params{Model: "m"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaLLM_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOllamaLLM(server.URL).Generate(ctx, "", "p", Params{Model: "m"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestNormalize64(t *testing.T) {
	vec := normalize64([]float64{1, 1, 1, 1})
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	assert.Equal(t, []float32{0, 0}, normalize64([]float64{0, 0}))
}
