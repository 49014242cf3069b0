package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"meetsumgo/internal/config"
	"meetsumgo/internal/models"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis to centralize configuration and the session-outcome
// cache keys. A nil Client is valid and degrades every operation to a miss.
type Client struct {
	inner *redis.Client
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

const outcomeTTL = 30 * time.Minute

// NewClient creates the redis client from app config.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

func outcomeKey(sessionID int64) string {
	return fmt.Sprintf("summarizer:outcomes:%d", sessionID)
}

// CacheOutcomes stores the recent outcome window for a session.
func (c *Client) CacheOutcomes(ctx context.Context, sessionID int64, outcomes []models.GenerationOutcome) {
	if c == nil || c.inner == nil || sessionID <= 0 {
		return
	}
	data, err := json.Marshal(outcomes)
	if err != nil {
		log.Printf("cache outcomes marshal failed: %v", err)
		return
	}
	if err := c.inner.Set(ctx, outcomeKey(sessionID), data, outcomeTTL).Err(); err != nil {
		log.Printf("cache outcomes for session %d failed: %v", sessionID, err)
	}
}

// LoadOutcomes fetches the cached outcome window; ok is false on any miss or
// decode problem so callers fall through to the database.
func (c *Client) LoadOutcomes(ctx context.Context, sessionID int64) ([]models.GenerationOutcome, bool) {
	if c == nil || c.inner == nil || sessionID <= 0 {
		return nil, false
	}
	raw, err := c.inner.Get(ctx, outcomeKey(sessionID)).Result()
	if err != nil {
		if err != ErrCacheMiss {
			log.Printf("load outcomes for session %d failed: %v", sessionID, err)
		}
		return nil, false
	}
	var outcomes []models.GenerationOutcome
	if err := json.Unmarshal([]byte(raw), &outcomes); err != nil {
		log.Printf("decode cached outcomes failed: %v", err)
		return nil, false
	}
	return outcomes, true
}

// InvalidateOutcomes drops the cached window after a new outcome is recorded.
func (c *Client) InvalidateOutcomes(ctx context.Context, sessionID int64) {
	if c == nil || c.inner == nil || sessionID <= 0 {
		return
	}
	if err := c.inner.Del(ctx, outcomeKey(sessionID)).Err(); err != nil && err != ErrCacheMiss {
		log.Printf("invalidate outcomes for session %d failed: %v", sessionID, err)
	}
}

// Close closes the client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Raw exposes the underlying go-redis client.
func (c *Client) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	return c.inner
}
