package utils

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"dbautorest/pkg/apperror"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// MaxClients bounds the limiter table; idle clients expire after IdleTTL.
	MaxClients int
	IdleTTL    time.Duration
}

// RateLimiter enforces a per-client rate limit. Clients are keyed by the
// gateway's X-Client-ID header, falling back to the remote address.
// A non-positive RequestsPerMinute disables limiting.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 10000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	limit := rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	clients := expirable.NewLRU[string, *rate.Limiter](cfg.MaxClients, nil, cfg.IdleTTL)

	return func(c *gin.Context) {
		key := c.GetHeader("X-Client-ID")
		if key == "" {
			key = c.ClientIP()
		}
		limiter, ok := clients.Get(key)
		if !ok {
			limiter = rate.NewLimiter(limit, cfg.Burst)
			clients.Add(key, limiter)
		}

		reservation := limiter.Reserve()
		if delay := reservation.Delay(); !reservation.OK() || delay > 0 {
			reservation.Cancel()
			if delay > 0 {
				c.Header("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			}
			ErrorResponse(c, apperror.New(apperror.CodeRateLimited, "rate limit exceeded"))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Next()
	}
}
