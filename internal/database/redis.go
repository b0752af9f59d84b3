// ===========================================
// Package database - Redis Connection
// ===========================================
// Redis is optional. When configured it serves:
// 1. The resolve cache (short code -> link), cache-aside
// 2. Rate limiting counters
//
// Analytics never read from Redis; click counts always come from
// the backing store.
// ===========================================

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/models"
)

// RedisDB wraps the Redis client with application-specific methods.
type RedisDB struct {
	Client   *redis.Client
	CacheTTL time.Duration
}

// NewRedisDB creates a new Redis connection.
// It validates the connection before returning.
func NewRedisDB(ctx context.Context, cfg config.RedisConfig) (*RedisDB, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Only override what the URL does not already carry.
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opt.MinIdleConns = cfg.MinIdleConns
	}

	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewRedisFromClient(client, cfg.CacheTTL), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, cacheTTL time.Duration) *RedisDB {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &RedisDB{Client: client, CacheTTL: cacheTTL}
}

// Close shuts down the Redis connection.
func (r *RedisDB) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Health checks if Redis is responsive.
func (r *RedisDB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}

// ===========================================
// KEYS
// ===========================================

// CacheKey is the resolve cache key for a short code.
// Pattern: "link:{shortCode}"
func CacheKey(shortCode string) string {
	return fmt.Sprintf("link:%s", shortCode)
}

// RateLimitKey generates a key for rate limiting.
// Pattern: "ratelimit:{identifier}:{window}"
func RateLimitKey(identifier string, window time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", identifier, window.Unix()/60)
}

// ===========================================
// LINK CACHE
// ===========================================

// GetLink returns the cached link for shortCode.
// A cache miss returns (nil, nil).
func (r *RedisDB) GetLink(ctx context.Context, shortCode string) (*models.Link, error) {
	data, err := r.Client.Get(ctx, CacheKey(shortCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached link: %w", err)
	}
	return &link, nil
}

// SetLink caches link under its short code with the default TTL.
func (r *RedisDB) SetLink(ctx context.Context, link *models.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}
	if err := r.Client.Set(ctx, CacheKey(link.ShortCode), data, r.CacheTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// DeleteLink evicts shortCode from the cache.
func (r *RedisDB) DeleteLink(ctx context.Context, shortCode string) error {
	if err := r.Client.Del(ctx, CacheKey(shortCode)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// ===========================================
// RATE LIMITING OPERATIONS
// ===========================================
// Fixed one-minute windows counted with INCR:
// 1. Key = "ratelimit:{client}:{minute}"
// 2. INCR key (atomic increment)
// 3. On the first request, EXPIRE the key after the window

// IncrementRateLimit increments the counter for key and returns the new count.
func (r *RedisDB) IncrementRateLimit(ctx context.Context, key string, windowSize time.Duration) (int64, error) {
	pipe := r.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, windowSize)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit incr failed: %w", err)
	}
	return incr.Val(), nil
}
