package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaEmbedder creates embeddings through a local Ollama server.
type OllamaEmbedder struct {
	apiURL string
	model  string
	client *http.Client
}

type OllamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// OllamaEmbeddingResponse covers both /api/embeddings (embedding) and
// /api/embed (embeddings) replies.
type OllamaEmbeddingResponse struct {
	Embedding  []float64   `json:"embedding"`
	Embeddings [][]float64 `json:"embeddings"`
}

func NewOllamaEmbedder(apiURL, model string) *OllamaEmbedder {
	return &OllamaEmbedder{
		apiURL: apiURL,
		model:  model,
		client: &http.Client{},
	}
}

func (e *OllamaEmbedder) Name() string {
	return "ollama:" + e.model
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(OllamaEmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := postJSON(ctx, e.client, e.apiURL, body, "ollama embed")
	if err != nil {
		return nil, err
	}

	var ollamaResp OllamaEmbeddingResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	vec := ollamaResp.Embedding
	if len(vec) == 0 && len(ollamaResp.Embeddings) > 0 {
		vec = ollamaResp.Embeddings[0]
	}
	if len(vec) == 0 {
		return nil, errors.New("ollama embed: empty embedding in response")
	}
	return normalize64(vec), nil
}

// OllamaLLM generates completions through Ollama's /api/generate.
type OllamaLLM struct {
	apiURL string
	client *http.Client
}

type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type GenerateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

type GenerateResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

func NewOllamaLLM(apiURL string) *OllamaLLM {
	return &OllamaLLM{
		apiURL: apiURL,
		client: &http.Client{},
	}
}

func (l *OllamaLLM) Generate(ctx context.Context, system, prompt string, p Params) (Completion, error) {
	reqBody, err := json.Marshal(GenerateRequest{
		Model:  p.Model,
		System: system,
		Prompt: prompt,
		Options: GenerateOptions{
			Temperature: p.Temperature,
			NumPredict:  p.MaxTokens,
		},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := postJSON(ctx, l.client, l.apiURL, reqBody, "ollama generate")
	if err != nil {
		return Completion{}, err
	}

	// A streamed reply is a sequence of JSON objects; a non-streamed one is
	// just the first and last of them.
	var (
		out  strings.Builder
		last GenerateResponse
	)
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			return Completion{}, fmt.Errorf("ollama generate: decode response: %w", err)
		}
		out.WriteString(chunk.Response)
		last = chunk
	}

	return Completion{
		Text:      strings.TrimSpace(out.String()),
		Truncated: last.DoneReason == "length",
	}, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, op string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
