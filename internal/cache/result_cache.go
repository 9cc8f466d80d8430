package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/models"
)

// ResultCacheStats tracks cache performance.
type ResultCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.Mutex
}

// ResultCache keeps the most recent PredictionResult per (model, symbol) in
// Redis so dashboards and downstream consumers can read the latest signal
// without hitting the pipeline. All operations are best-effort.
type ResultCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *ResultCacheStats
	prefix string
	logger *logrus.Logger
}

// NewResultCache creates a Redis-backed latest-result cache.
func NewResultCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResultCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &ResultCacheStats{},
		prefix: "prediction:",
		logger: logger,
	}
}

func (c *ResultCache) key(model, symbol string) string {
	return c.prefix + model + ":" + symbol
}

// Get returns the cached latest result for a model/symbol pair.
func (c *ResultCache) Get(ctx context.Context, model, symbol string) (*models.PredictionResult, bool) {
	data, err := c.redis.Get(ctx, c.key(model, symbol)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("Result cache read failed")
		}
		c.miss()
		return nil, false
	}

	var result models.PredictionResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.WithError(err).Debug("Result cache entry corrupt")
		c.miss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	return &result, true
}

// Set stores the latest result for a model/symbol pair.
func (c *ResultCache) Set(ctx context.Context, result *models.PredictionResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).Debug("Result cache encode failed")
		return
	}
	if err := c.redis.Set(ctx, c.key(result.ModelName, result.Symbol), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Result cache write failed")
		return
	}
	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// Stats returns a snapshot of the hit/miss counters.
func (c *ResultCache) Stats() ResultCacheStats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return ResultCacheStats{Hits: c.stats.Hits, Misses: c.stats.Misses, Sets: c.stats.Sets}
}

func (c *ResultCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
