// Package ratelimit throttles query traffic per caller. LLM and embedding
// calls sit behind every query, so one noisy client must not be able to
// drain the upstream quota for everyone else.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	cleanupEvery = 5 * time.Minute
	staleAfter   = 10 * time.Minute
)

type Config struct {
	MaxRequestsPerMinute int
	WindowDuration       time.Duration
	Logger               *zap.Logger
}

// clientBucket refills continuously at the configured rate rather than in
// whole-token steps, so bursts right at a window edge cannot double up.
type clientBucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter keys buckets by the X-User-ID header when present, falling
// back to client IP for anonymous callers.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket

	capacity   float64
	ratePerSec float64
	logger     *zap.Logger
	done       chan struct{}
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		buckets:    make(map[string]*clientBucket),
		capacity:   float64(cfg.MaxRequestsPerMinute),
		ratePerSec: float64(cfg.MaxRequestsPerMinute) / cfg.WindowDuration.Seconds(),
		logger:     cfg.Logger,
		done:       make(chan struct{}),
	}

	go rl.evictStale()

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := keyFor(c)

		if !rl.take(key) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
			)
			// Seconds until the next token accrues.
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(1/rl.ratePerSec)+1))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

func keyFor(c *fiber.Ctx) string {
	if userID := c.Get("X-User-ID"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.IP()
}

func (rl *RateLimiter) take(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{tokens: rl.capacity, lastSeen: now}
		rl.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * rl.ratePerSec
	if b.tokens > rl.capacity {
		b.tokens = rl.capacity
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.lastSeen) > staleAfter {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Stop() {
	close(rl.done)
}
