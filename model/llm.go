package model

import (
	"consultant/config"
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Params bound a single generation.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type Completion struct {
	Text string
	// Truncated is set when the runtime stopped because MaxTokens was hit.
	Truncated bool
}

// LLM is a locally hosted language model runtime.
type LLM interface {
	Generate(ctx context.Context, system, prompt string, p Params) (Completion, error)
}

// NewLLM builds the runtime client selected by configuration. A positive
// rate limit throttles calls to the runtime.
func NewLLM(cfg config.LLMConfig) (LLM, error) {
	var llm LLM
	switch cfg.Provider {
	case "ollama", "":
		llm = NewOllamaLLM(cfg.URL)
	case "openai":
		llm = NewOpenAILLM(cfg.URL, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
	if cfg.RateLimit > 0 {
		llm = NewRateLimited(llm, cfg.RateLimit)
	}
	return llm, nil
}

// RateLimited queues calls so a single local runtime is not flooded.
type RateLimited struct {
	next    LLM
	limiter *rate.Limiter
}

func NewRateLimited(next LLM, perSecond float64) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (r *RateLimited) Generate(ctx context.Context, system, prompt string, p Params) (Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Completion{}, fmt.Errorf("waiting for model runtime slot: %w: %v", ErrTimeout, err)
	}
	return r.next.Generate(ctx, system, prompt, p)
}
