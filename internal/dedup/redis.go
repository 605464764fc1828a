package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
)

const redisKeyPrefix = "notifier:dedup:"

// RedisCache shares the duplicate window across several notifier processes
// watching the same receiver. SET NX with a PX expiry gives the same
// first-wins semantics as Cache, and Redis expiry replaces the lazy sweep.
type RedisCache struct {
	client *redis.Client
	window time.Duration
}

// NewRedisClient connects to addr and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   1,
		PoolSize:     4,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		DialTimeout:  3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("Connected to Redis dedup backend", zap.String("address", addr))
	return client, nil
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, window time.Duration) *RedisCache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisCache{client: client, window: window}
}

// ShouldDeliver returns true when this process is first to claim key within
// the window. Redis errors fail open: a duplicate toast beats a lost one.
func (r *RedisCache) ShouldDeliver(ctx context.Context, key Key) bool {
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+key.String(), time.Now().UnixMilli(), r.window).Result()
	if err != nil {
		logger.WarnWithErr("Redis dedup check failed, delivering", err, zap.String("key", key.String()))
		metrics.DedupDecisions.WithLabelValues("error").Inc()
		return true
	}
	if !ok {
		metrics.DedupDecisions.WithLabelValues("duplicate").Inc()
		return false
	}
	metrics.DedupDecisions.WithLabelValues("delivered").Inc()
	return true
}

// Close releases the underlying connection pool
func (r *RedisCache) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
