package dedup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis dedup tests")
	}
	client, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCacheWindow(t *testing.T) {
	cache := NewRedisCache(redisForTest(t), 200*time.Millisecond)
	ctx := context.Background()
	key := Key{Sender: gofakeit.UUID(), Receiver: gofakeit.UUID(), Type: "like", Target: gofakeit.UUID()}

	assert.True(t, cache.ShouldDeliver(ctx, key))
	assert.False(t, cache.ShouldDeliver(ctx, key))

	time.Sleep(300 * time.Millisecond)
	assert.True(t, cache.ShouldDeliver(ctx, key))
}

func TestRedisCacheFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cache := NewRedisCache(client, time.Second)
	key := Key{Sender: "a", Receiver: "b", Type: "like"}
	assert.True(t, cache.ShouldDeliver(context.Background(), key))
	assert.True(t, cache.ShouldDeliver(context.Background(), key))
}
