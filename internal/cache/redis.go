// Package cache keeps the category facet in Redis.
//
// The facet is the distinct category list over every post. It is read on
// every listing but only changes when a post is written. Entries live under
// a generation-numbered key; a post mutation bumps the generation, so an
// entry computed before the write is never served after it, even when it is
// stored after the write. A nil client turns every method into a no-op
// miss, which is how the server runs when REDIS_URL is empty.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/blogspace/internal/observability"
)

const (
	CategoriesKey = "blogspace:categories"
	GenerationKey = CategoriesKey + ":gen"
	DefaultTTL    = 10 * time.Minute
)

// FacetKey is the key the facet of generation gen is stored under.
func FacetKey(gen int64) string {
	return CategoriesKey + ":" + strconv.FormatInt(gen, 10)
}

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.CacheErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.CacheErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Connect builds a client from a redis:// URL or a bare host:port and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("cache: parsing REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: pinging redis: %w", err)
	}
	return client, nil
}

// Categories caches the category facet. The zero value and a nil
// *Categories are both valid and never hit.
type Categories struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCategories(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Categories {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Categories{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached facet and the generation it looked under. Any
// Redis failure is logged and reported as a miss so the caller falls back
// to the database; the generation is then -1 and Set ignores it.
func (c *Categories) Get(ctx context.Context) ([]string, int64, bool) {
	if c == nil || c.client == nil {
		return nil, -1, false
	}

	gen, err := c.client.Get(ctx, GenerationKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		gen = 0
	case err != nil:
		c.logger.Warn("category cache read failed", slog.String("error", err.Error()))
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return nil, -1, false
	}

	raw, err := c.client.Get(ctx, FacetKey(gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("category cache read failed", slog.String("error", err.Error()))
			gen = -1
		}
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return nil, gen, false
	}

	var categories []string
	if err := json.Unmarshal(raw, &categories); err != nil {
		c.logger.Warn("category cache holds malformed data", slog.String("error", err.Error()))
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return nil, gen, false
	}

	observability.CacheLookups.WithLabelValues("hit").Inc()
	return categories, gen, true
}

// Set stores categories under gen, as returned by the Get that missed.
func (c *Categories) Set(ctx context.Context, gen int64, categories []string) {
	if c == nil || c.client == nil || gen < 0 {
		return
	}

	raw, err := json.Marshal(categories)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, FacetKey(gen), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("category cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate starts a new generation after a post is created, updated or
// deleted. The old entry is left to expire.
func (c *Categories) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, GenerationKey).Err(); err != nil {
		c.logger.Warn("category cache invalidation failed", slog.String("error", err.Error()))
	}
}
