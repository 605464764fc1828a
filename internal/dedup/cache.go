package dedup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lingoloop/notifier/internal/clock"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
)

const (
	DefaultWindow = 500 * time.Millisecond
	DefaultTTL    = 5000 * time.Millisecond
)

// Cache is the in-memory key to last-seen map. Entries older than the TTL are
// swept on every call so no background goroutine is needed.
type Cache struct {
	mu       sync.Mutex
	window   time.Duration
	ttl      time.Duration
	clock    clock.Clock
	lastSeen map[string]time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithWindow overrides the duplicate window
func WithWindow(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithTTL overrides the eviction age
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock injects a clock, used by tests
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

// NewCache creates a Cache with the default 500ms window and 5s TTL
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		window:   DefaultWindow,
		ttl:      DefaultTTL,
		clock:    clock.Real{},
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl < c.window {
		c.ttl = c.window
	}
	return c
}

// ShouldDeliver records key and reports whether it is new. A duplicate does
// not refresh the entry, so a burst cannot extend its own window.
func (c *Cache) ShouldDeliver(_ context.Context, key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.evictLocked(now)

	k := key.String()
	if seen, ok := c.lastSeen[k]; ok && now.Sub(seen) < c.window {
		metrics.DedupDecisions.WithLabelValues("duplicate").Inc()
		logger.Debug("Suppressed duplicate event", zap.String("key", k))
		return false
	}
	c.lastSeen[k] = now
	metrics.DedupDecisions.WithLabelValues("delivered").Inc()
	return true
}

func (c *Cache) evictLocked(now time.Time) {
	for k, seen := range c.lastSeen {
		if now.Sub(seen) > c.ttl {
			delete(c.lastSeen, k)
		}
	}
	metrics.DedupEntries.Set(float64(len(c.lastSeen)))
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastSeen)
}
