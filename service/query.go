package service

import (
	"consultant/types"
	"context"
	"log/slog"
	"strings"
	"time"
)

type Generator interface {
	Generate(ctx context.Context, question string, chunks []types.ScoredChunk) (types.Generation, error)
}

type ChunkRetriever interface {
	Retrieve(ctx context.Context, question string) ([]types.ScoredChunk, error)
}

// Cache keeps answers between requests. Misses and failures look the same.
type Cache interface {
	Get(ctx context.Context, key string) (types.Answer, bool)
	Set(ctx context.Context, key string, answer types.Answer)
}

type QueryConfig struct {
	// Timeout bounds retrieval plus generation for one question.
	Timeout time.Duration
	Cache   Cache
	// CacheKey derives the cache key for a question.
	CacheKey func(question string) string
}

type QueryService struct {
	retriever ChunkRetriever
	generator Generator
	cfg       QueryConfig
	logger    *slog.Logger
}

func NewQueryService(retriever ChunkRetriever, generator Generator, cfg QueryConfig, logger *slog.Logger) *QueryService {
	return &QueryService{
		retriever: retriever,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer retrieves context for question and asks the generator for an
// answer. The generator is called even when nothing was retrieved; such
// an answer has no sources. Errors are *StageError values.
func (s *QueryService) Answer(ctx context.Context, question string) (types.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return types.Answer{}, ErrEmptyQuestion
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var key string
	if s.cfg.Cache != nil && s.cfg.CacheKey != nil {
		key = s.cfg.CacheKey(question)
		if answer, ok := s.cfg.Cache.Get(ctx, key); ok {
			s.logger.Debug("answer served from cache")
			return answer, nil
		}
	}

	start := time.Now()
	chunks, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		s.logger.Error("retrieval failed", "error", err)
		return types.Answer{}, &StageError{Stage: StageRetrieval, Err: err}
	}
	retrieved := time.Since(start)

	gen, err := s.generator.Generate(ctx, question, chunks)
	if err != nil {
		s.logger.Error("generation failed", "error", err, "chunks", len(chunks))
		return types.Answer{}, &StageError{Stage: StageGeneration, Err: err}
	}

	answer := types.Answer{
		Text:         gen.Text,
		Sources:      []types.ScoredChunk{},
		Status:       types.StatusOK,
		ContextFound: !gen.NoContext && len(gen.Used) > 0,
		Truncated:    gen.Truncated,
	}
	if answer.ContextFound {
		answer.Sources = gen.Used
	}

	s.logger.Info("question answered",
		"retrieved", len(chunks),
		"sources", len(answer.Sources),
		"context_found", answer.ContextFound,
		"truncated", answer.Truncated,
		"retrieval_took", retrieved,
		"took", time.Since(start))

	if key != "" {
		s.cfg.Cache.Set(ctx, key, answer)
	}
	return answer, nil
}
