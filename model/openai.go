package model

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI-compatible runtimes (Ollama's /v1, llama.cpp server, LM Studio)
// are reached through the official client pointed at a local base URL.

func newOpenAIClient(baseURL, apiKey string) openai.Client {
	if apiKey == "" {
		// local runtimes ignore the key but the client insists on one
		apiKey = "local"
	}
	return openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
}

type OpenAILLM struct {
	client openai.Client
}

func NewOpenAILLM(baseURL, apiKey string) *OpenAILLM {
	return &OpenAILLM{client: newOpenAIClient(baseURL, apiKey)}
}

func (l *OpenAILLM) Generate(ctx context.Context, system, prompt string, p Params) (Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, classifyOpenAI("openai generate", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("openai generate: no choices in response")
	}

	choice := resp.Choices[0]
	return Completion{
		Text:      choice.Message.Content,
		Truncated: choice.FinishReason == "length",
	}, nil
}

type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: newOpenAIClient(baseURL, apiKey),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Name() string {
	return "openai:" + e.model
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, classifyOpenAI("openai embed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai embed: empty embedding in response")
	}
	return normalize64(resp.Data[0].Embedding), nil
}

func classifyOpenAI(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return statusError(op, apiErr.StatusCode, apiErr.Error())
	}
	return classify(op, err)
}
