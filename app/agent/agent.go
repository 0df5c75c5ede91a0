package agent

import (
	"consultant/model"
	"consultant/types"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrEmptyAnswer = errors.New("model returned an empty answer")

type Config struct {
	Params model.Params
	// MaxContextTokens caps the prompt size; 0 disables the cap.
	MaxContextTokens int
}

// Generator turns a question and its retrieved chunks into an answer using
// a language model.
type Generator struct {
	llm     model.LLM
	tmpl    *Template
	cfg     Config
	counter model.TokenCounter
	logger  *slog.Logger
}

func NewGenerator(llm model.LLM, tmpl *Template, cfg Config, counter model.TokenCounter, logger *slog.Logger) *Generator {
	return &Generator{
		llm:     llm,
		tmpl:    tmpl,
		cfg:     cfg,
		counter: counter,
		logger:  logger,
	}
}

func (g *Generator) Generate(ctx context.Context, question string, chunks []types.ScoredChunk) (types.Generation, error) {
	used, err := g.fit(question, chunks)
	if err != nil {
		return types.Generation{}, err
	}
	if dropped := len(chunks) - len(used); dropped > 0 {
		g.logger.Warn("context exceeds token budget, dropping lowest ranked chunks",
			"dropped", dropped, "budget", g.cfg.MaxContextTokens)
	}

	prompt, err := BuildPrompt(question, used, g.tmpl)
	if err != nil {
		return types.Generation{}, err
	}

	start := time.Now()
	completion, err := g.llm.Generate(ctx, g.tmpl.System, prompt, g.cfg.Params)
	if err != nil {
		return types.Generation{}, err
	}
	g.logger.Debug("llm answered", "took", time.Since(start), "truncated", completion.Truncated)

	gen := types.Generation{
		Text:      completion.Text,
		Used:      used,
		NoContext: len(used) == 0,
		Truncated: completion.Truncated,
	}
	switch {
	case len(used) == 0:
		// nothing in the prompt can support an answer
		gen.Text = g.tmpl.Fallback
	case g.tmpl.reportsNoContext(completion.Text):
		gen.Text = g.tmpl.Fallback
		gen.NoContext = true
	}
	if gen.Text == "" {
		return types.Generation{}, fmt.Errorf("%w (model %s)", ErrEmptyAnswer, g.cfg.Params.Model)
	}
	return gen, nil
}

// fit keeps chunks in rank order while the rendered prompt stays within
// the token budget.
func (g *Generator) fit(question string, chunks []types.ScoredChunk) ([]types.ScoredChunk, error) {
	if g.cfg.MaxContextTokens <= 0 || g.counter == nil || len(chunks) == 0 {
		return chunks, nil
	}

	base, err := BuildPrompt(question, nil, g.tmpl)
	if err != nil {
		return nil, err
	}
	total := g.counter.Count(g.tmpl.System) + g.counter.Count(base)

	used := make([]types.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		cost := g.counter.Count(c.Source) + g.counter.Count(c.Content)
		if total+cost > g.cfg.MaxContextTokens {
			break
		}
		total += cost
		used = append(used, c)
	}
	return used, nil
}
