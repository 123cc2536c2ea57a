package security

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
)

// RateLimitConfig holds the token bucket settings for throttled routes
type RateLimitConfig struct {
	// Requests per second per key; zero disables limiting
	RPS   float64
	Burst int
	// Entries idle for longer than this are evicted
	IdleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key (route plus client IP)
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*limiterEntry
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed now
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil || rl.config.RPS <= 0 {
		return true
	}
	return rl.limiter(key).AllowN(rl.now(), 1)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evict(now)

	entry, ok := rl.buckets[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)}
		rl.buckets[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evict must be called with mu held
func (rl *RateLimiter) evict(now time.Time) {
	if rl.config.IdleTTL <= 0 {
		return
	}
	for key, entry := range rl.buckets {
		if now.Sub(entry.lastSeen) > rl.config.IdleTTL {
			delete(rl.buckets, key)
		}
	}
}

// RateLimitMiddleware returns a Gin middleware that rejects requests over the
// limit. onLimited writes the rejection; a nil onLimited sends a bare 429.
func (rl *RateLimiter) RateLimitMiddleware(onLimited func(c *gin.Context, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + "|" + c.ClientIP()
		if rl.Allow(key) {
			c.Next()
			return
		}

		retryAfter := strconv.Itoa(rl.retryAfter())
		c.Header("Retry-After", retryAfter)
		if onLimited == nil {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		onLimited(c, errors.NewRateLimitError("Too many requests. Please wait before sending again.").
			WithDetail("retry_after", retryAfter))
		c.Abort()
	}
}

// retryAfter is the whole number of seconds until one token is back
func (rl *RateLimiter) retryAfter() int {
	if rl.config.RPS > 0 && rl.config.RPS < 1 {
		return int(1/rl.config.RPS + 0.5)
	}
	return 1
}
