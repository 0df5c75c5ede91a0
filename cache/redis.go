package cache

import (
	"consultant/types"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const answerKeyPrefix = "consultant:answer:" // consultant:answer:{sha256}

// AnswerCache stores generated answers in Redis. Keys include the index
// fingerprint, so a rebuilt knowledge base never serves old answers.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewAnswerCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *AnswerCache {
	return &AnswerCache{client: client, ttl: ttl, logger: logger}
}

// Connect dials addr and checks the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return client, nil
}

func Key(fingerprint, model, question string) string {
	sum := sha256.Sum256([]byte(fingerprint + "\x00" + model + "\x00" + question))
	return answerKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached answer for key. Redis failures are logged and
// reported as a miss.
func (c *AnswerCache) Get(ctx context.Context, key string) (types.Answer, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Answer{}, false
	}
	if err != nil {
		c.logger.Warn("answer cache read failed", "error", err)
		return types.Answer{}, false
	}

	var answer types.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		c.logger.Warn("answer cache entry is corrupt", "key", key, "error", err)
		return types.Answer{}, false
	}
	return answer, true
}

func (c *AnswerCache) Set(ctx context.Context, key string, answer types.Answer) {
	data, err := json.Marshal(answer)
	if err != nil {
		c.logger.Warn("failed to marshal answer", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("answer cache write failed", "error", err)
	}
}
