package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Knowledge KnowledgeConfig
	Retrieval RetrievalConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Store     StoreConfig
	Cache     CacheConfig
	Log       LogConfig
}

type ServerConfig struct {
	Addr           string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gt=0"`
	CORSOrigins    string
}

type KnowledgeConfig struct {
	Paths         []string `validate:"required,min=1,dive,required"`
	ChunkSize     int      `validate:"gt=0"`
	ChunkOverlap  int      `validate:"gte=0,ltfield=ChunkSize"`
	PDFCropTop    float64  `validate:"gte=0"`
	PDFCropBottom float64  `validate:"gte=0"`
}

type RetrievalConfig struct {
	TopK             int     `validate:"gt=0,lte=50"`
	MinScore         float64 `validate:"gte=-1,lte=1"`
	MaxContextTokens int     `validate:"gte=0"`
}

type LLMConfig struct {
	Provider    string  `validate:"oneof=ollama openai"`
	URL         string  `validate:"required,url"`
	Model       string  `validate:"required"`
	APIKey      string
	Temperature float64 `validate:"gte=0,lte=2"`
	MaxTokens   int     `validate:"gt=0"`
	RateLimit   float64 `validate:"gte=0"`
	PromptFile  string
}

type EmbeddingConfig struct {
	Provider string `validate:"oneof=ollama openai hash"`
	URL      string `validate:"omitempty,url"`
	Model    string `validate:"required_unless=Provider hash"`
	APIKey   string
}

type StoreConfig struct {
	Type     string `validate:"oneof=memory postgres"`
	Host     string `validate:"required_if=Type postgres"`
	Port     int
	User     string `validate:"required_if=Type postgres"`
	Password string
	DBName   string `validate:"required_if=Type postgres"`
}

type CacheConfig struct {
	RedisAddr string
	TTL       time.Duration
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

// Load reads an optional .env file and the process environment, then
// validates the result. Any invalid or missing required value is an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the environment only.
func FromEnv() (*Config, error) {
	var errs []error
	geti := func(key string, def int) int {
		v, err := getEnvAsInt(key, def)
		errs = append(errs, err)
		return v
	}
	getf := func(key string, def float64) float64 {
		v, err := getEnvAsFloat(key, def)
		errs = append(errs, err)
		return v
	}
	getd := func(key string, def time.Duration) time.Duration {
		v, err := getEnvAsDuration(key, def)
		errs = append(errs, err)
		return v
	}

	llmProvider := getEnv("MODEL_PROVIDER", "ollama")
	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("SERVER_ADDR", ":8000"),
			RequestTimeout: getd("REQUEST_TIMEOUT", 60*time.Second),
			CORSOrigins:    getEnv("CORS_ORIGINS", "*"),
		},
		Knowledge: KnowledgeConfig{
			Paths:         splitList(getEnv("KNOWLEDGE_PATHS", "./knowledge")),
			ChunkSize:     geti("CHUNK_SIZE", 100),
			ChunkOverlap:  geti("CHUNK_OVERLAP", 10),
			PDFCropTop:    getf("PDF_CROP_TOP", 0),
			PDFCropBottom: getf("PDF_CROP_BOTTOM", 0),
		},
		Retrieval: RetrievalConfig{
			TopK:             geti("TOP_K", 3),
			MinScore:         getf("MIN_SCORE", -1),
			MaxContextTokens: geti("MAX_CONTEXT_TOKENS", 3000),
		},
		LLM: LLMConfig{
			Provider:    llmProvider,
			URL:         getEnv("LLM_URL", defaultLLMURL(llmProvider)),
			Model:       getEnv("LLM_MODEL", "phi3:mini"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Temperature: getf("LLM_TEMPERATURE", 0.1),
			MaxTokens:   geti("LLM_MAX_TOKENS", 512),
			RateLimit:   getf("LLM_RATE_LIMIT", 0),
			PromptFile:  os.Getenv("PROMPT_FILE"),
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			URL:      getEnv("EMBEDDING_URL", "http://localhost:11434/api/embeddings"),
			Model:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			APIKey:   os.Getenv("EMBEDDING_API_KEY"),
		},
		Store: StoreConfig{
			Type:     getEnv("VECTOR_STORE", "memory"),
			Host:     os.Getenv("PG_HOST"),
			Port:     geti("PG_PORT", 5432),
			User:     os.Getenv("PG_USER"),
			Password: os.Getenv("PG_PASS"),
			DBName:   os.Getenv("PG_DB_NAME"),
		},
		Cache: CacheConfig{
			RedisAddr: os.Getenv("REDIS_ADDR"),
			TTL:       getd("CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// PostgresDSN builds the keyword/value connection string with TLS disabled.
func (s StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		s.Host, s.Port, s.User, s.Password, s.DBName)
}

func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultLLMURL(provider string) string {
	if provider == "openai" {
		return "http://localhost:11434/v1"
	}
	return "http://localhost:11434/api/generate"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, valueStr)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, valueStr)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, valueStr)
	}
	return value, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
