package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestOpenAILLM_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1", "object": "chat.completion", "created": 1, "model": "phi3:mini",
			"choices": [{"index": 0, "finish_reason": "length",
				"message": {"role": "assistant", "content": "Budget 10 dollars a day."}}]
		}`))
	}))
	defer server.Close()

	llm := NewOpenAILLM(server.URL+"/v1/", "")
	out, err := llm.Generate(context.Background(), "system text", "user text",
		Params{Model: "phi3:mini", Temperature: 0.1, MaxTokens: 32})
	require.NoError(t, err)

	assert.Equal(t, "Budget 10 dollars a day.", out.Text)
	assert.True(t, out.Truncated)
	assert.Equal(t, "phi3:mini", got["model"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAILLM_ServerErrorIsUnavailable(t *testing.T) {
	server := newOpenAIServer(t, http.StatusServiceUnavailable, `{"error": {"message": "loading model"}}`)
	defer server.Close()

	_, err := NewOpenAILLM(server.URL+"/v1/", "").Generate(context.Background(), "", "p", Params{Model: "m"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := newOpenAIServer(t, http.StatusOK, `{
		"object": "list", "model": "nomic-embed-text",
		"data": [{"object": "embedding", "index": 0, "embedding": [0, 0, 5]}],
		"usage": {"prompt_tokens": 1, "total_tokens": 1}
	}`)
	defer server.Close()

	e := NewOpenAIEmbedder(server.URL+"/v1/", "", "nomic-embed-text")
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, vec)
	assert.Equal(t, "openai:nomic-embed-text", e.Name())
}
