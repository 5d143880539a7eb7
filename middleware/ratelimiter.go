package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/utils"
)

// RateLimiterConfig configures RateLimiter.
type RateLimiterConfig struct {
	Max      int
	Duration time.Duration
	Skip     func(*fiber.Ctx) bool
	// Storage shares counters between instances; nil keeps them in memory.
	Storage fiber.Storage
}

// RateLimiterOption mutates RateLimiterConfig.
type RateLimiterOption func(*RateLimiterConfig)

// WithMax sets the number of requests allowed per window.
func WithMax(max int) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Max = max }
}

// WithDuration sets the window length.
func WithDuration(d time.Duration) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Duration = d }
}

// WithSkip exempts requests for which skip returns true.
func WithSkip(skip func(*fiber.Ctx) bool) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Skip = skip }
}

// WithStorage sets the counter storage.
func WithStorage(s fiber.Storage) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Storage = s }
}

// RateLimiter limits requests per client IP, 50 per second by default.
func RateLimiter(options ...RateLimiterOption) fiber.Handler {
	cfg := RateLimiterConfig{Max: 50, Duration: time.Second}
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.Max <= 0 {
		cfg.Max = 50
	}
	if cfg.Duration <= 0 {
		cfg.Duration = time.Second
	}

	retryAfter := int(cfg.Duration.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Duration,
		Storage:    cfg.Storage,
		Next:       cfg.Skip,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.CopyString(c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			c.Set("X-RateLimit-Remaining", "0")

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too Many Requests",
				"retry_after": retryAfter,
			})
		},
	})
}
