// Package ratelimit throttles repeated requests from the same client within a
// fixed time window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Limiter decides whether one more request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config bounds a key to Requests per Window.
type Config struct {
	Requests int
	Window   time.Duration
}

func (c Config) normalize() Config {
	if c.Requests <= 0 {
		c.Requests = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

// maxTrackedKeys caps the memory held by MemoryLimiter.
const maxTrackedKeys = 10000

type counter struct{ n int }

// MemoryLimiter keeps per-key counters in process memory. Counters expire one
// window after the first request that created them.
type MemoryLimiter struct {
	cfg Config

	mu       sync.Mutex
	counters *lru.LRU[string, *counter]
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.normalize()
	return &MemoryLimiter{
		cfg:      cfg,
		counters: lru.NewLRU[string, *counter](maxTrackedKeys, nil, cfg.Window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters.Get(key)
	if !ok {
		l.counters.Add(key, &counter{n: 1})
		return true, nil
	}
	c.n++
	return c.n <= l.cfg.Requests, nil
}

// Noop allows everything.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }
