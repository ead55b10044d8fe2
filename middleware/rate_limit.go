package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// limiterIdleTTL outlasts a full bucket refill, so eviction never forgives debt.
const limiterIdleTTL = 5 * time.Minute

type callerLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimiter hands out one token bucket per caller and drops buckets idle
// for longer than limiterIdleTTL.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*callerLimiter
	every    rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per caller, with bursts of the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*callerLimiter),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		now:      time.Now,
	}
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.cleanupExpiredLocked(now)

	l, ok := r.limiters[key]
	if !ok {
		l = &callerLimiter{limiter: rate.NewLimiter(r.every, r.burst)}
		r.limiters[key] = l
	}
	l.expires = now.Add(limiterIdleTTL)
	return l.limiter
}

func (r *RateLimiter) cleanupExpiredLocked(now time.Time) {
	for key, l := range r.limiters {
		if now.After(l.expires) {
			delete(r.limiters, key)
		}
	}
}

// Allow reports whether key may make another request now.
func (r *RateLimiter) Allow(key string) bool {
	l := r.limiter(key)
	return l.AllowN(r.now(), 1)
}

// Handler limits by session user id, falling back to the client IP.
func (r *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := UserID(c)
		if key == "" {
			key = "ip:" + c.IP()
		}
		if !r.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "RateLimited",
				"message": "too many attempts, slow down",
			})
		}
		return c.Next()
	}
}
