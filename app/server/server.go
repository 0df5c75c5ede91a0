package server

import (
	"consultant/app/agent"
	"consultant/app/api"
	"consultant/app/middleware"
	"consultant/cache"
	"consultant/config"
	"consultant/loader"
	"consultant/model"
	"consultant/service"
	"consultant/store"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Pipeline is everything a request needs, built once at startup.
type Pipeline struct {
	Index *service.Indexer
	Query *service.QueryService

	closers []func() error
	logger  *slog.Logger
}

func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Warn("failed to release pipeline resource", "error", err)
		}
	}
}

// BuildPipeline loads the knowledge base, builds the index and wires the
// query service. Any error leaves nothing open.
func BuildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Pipeline, err error) {
	p := &Pipeline{logger: logger}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	docs, err := loader.New(loader.Config{
		ChunkSize:     cfg.Knowledge.ChunkSize,
		ChunkOverlap:  cfg.Knowledge.ChunkOverlap,
		PDFCropTop:    cfg.Knowledge.PDFCropTop,
		PDFCropBottom: cfg.Knowledge.PDFCropBottom,
	}, logger).Load(ctx, cfg.Knowledge.Paths)
	if err != nil {
		return nil, err
	}

	embedder, err := model.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	vs, err := newVectorStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrIndex, err)
	}
	p.closers = append(p.closers, vs.Close)

	p.Index, err = service.NewIndexer(ctx, vs, embedder, logger)
	if err != nil {
		return nil, err
	}
	if _, err := p.Index.Index(ctx, docs); err != nil {
		return nil, err
	}

	retriever, err := service.NewRetriever(p.Index, embedder, cfg.Retrieval.TopK, cfg.Retrieval.MinScore)
	if err != nil {
		return nil, err
	}

	llm, err := model.NewLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}
	tmpl, err := agent.LoadTemplate(cfg.LLM.PromptFile)
	if err != nil {
		return nil, err
	}
	var counter model.TokenCounter
	if cfg.Retrieval.MaxContextTokens > 0 {
		counter = model.NewTokenCounter(logger)
	}
	generator := agent.NewGenerator(llm, tmpl, agent.Config{
		Params: model.Params{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		MaxContextTokens: cfg.Retrieval.MaxContextTokens,
	}, counter, logger)

	qcfg := service.QueryConfig{Timeout: cfg.Server.RequestTimeout}
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client.Close)

		fingerprint := p.Index.Fingerprint()
		generation := answerSettings(cfg, tmpl.Digest)
		qcfg.Cache = cache.NewAnswerCache(client, cfg.Cache.TTL, logger)
		qcfg.CacheKey = func(question string) string {
			return cache.Key(fingerprint, generation, question)
		}
		logger.Info("answer cache enabled", "redis", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	p.Query = service.NewQueryService(retriever, generator, qcfg, logger)
	return p, nil
}

// answerSettings covers every setting that changes which sources or text
// an answer gets, so a cached answer is only reused under the same ones.
func answerSettings(cfg *config.Config, promptDigest string) string {
	return fmt.Sprintf("%s|%s|k=%d|min=%g|ctx=%d|temp=%g|max=%d",
		cfg.LLM.Model,
		promptDigest,
		cfg.Retrieval.TopK,
		cfg.Retrieval.MinScore,
		cfg.Retrieval.MaxContextTokens,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)
}

func newVectorStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.VectorStore, error) {
	switch cfg.Type {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.PostgresDSN(), logger)
	default:
		return store.NewMemoryStore(), nil
	}
}

type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	gate     *middleware.Gate
	app      *fiber.App
	pipeline *Pipeline
}

func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		gate:   &middleware.Gate{},
	}
}

// Build runs the startup pipeline and registers the routes. Requests to
// /ask are refused until it has succeeded.
func (s *Server) Build(ctx context.Context) error {
	start := time.Now()
	pipeline, err := BuildPipeline(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.pipeline = pipeline
	s.app = NewApp(s.cfg.Server, pipeline, s.gate, s.logger)
	s.gate.Open()
	s.logger.Info("pipeline ready", "took", time.Since(start))
	return nil
}

// NewApp builds the fiber app around an already built pipeline.
func NewApp(cfg config.ServerConfig, p *Pipeline, gate *middleware.Gate, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "consultant",
		ErrorHandler:          api.ErrorHandler,
		WriteTimeout:          cfg.RequestTimeout + 5*time.Second,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.ReplaceAll(cfg.CORSOrigins, " ", ""),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	var (
		checkHandler = api.NewCheckHandler(gate, p.Index)
		askHandler   = api.NewAskHandler(p.Query)
		check        = app.Group("/check")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/ready", checkHandler.HandleReady)
	app.Post("/ask", middleware.RequireReady(gate), askHandler.HandleAsk)

	return app
}

func (s *Server) Run() error {
	s.logger.Info("server listening", "addr", s.cfg.Server.Addr)
	return s.app.Listen(s.cfg.Server.Addr)
}

// Stop closes the gate, waits for in-flight requests and releases the
// pipeline.
func (s *Server) Stop(ctx context.Context) error {
	s.gate.Close()
	var err error
	if s.app != nil {
		err = s.app.ShutdownWithContext(ctx)
	}
	if s.pipeline != nil {
		s.pipeline.Close()
	}
	s.logger.Info("server stopped")
	return err
}
