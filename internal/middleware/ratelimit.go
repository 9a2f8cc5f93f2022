package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
)

// RateLimiter is a fixed-window limiter shared by every instance through
// Redis. Keys are per client IP, or per user when a JWT was validated.
type RateLimiter struct {
	rdb      *redis.Client
	name     string
	rate     int
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(rdb *redis.Client, name string, rate int, interval time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:      rdb,
		name:     name,
		rate:     rate,
		interval: interval,
		log:      log.With().Str("component", "rate_limiter").Str("limiter", name).Logger(),
		now:      time.Now,
	}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	subject := "ip:" + c.ClientIP()
	if claims := GetClaims(c); claims != nil {
		subject = "user:" + claims.UserID.String()
	}
	window := rl.now().UnixNano() / int64(rl.interval)
	return fmt.Sprintf("ratelimit:%s:%s:%d", rl.name, subject, window)
}

// Middleware returns a Gin middleware that rate-limits requests. Redis
// failures let the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := rl.key(c)

		pipe := rl.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.interval)
		if _, err := pipe.Exec(ctx); err != nil {
			rl.log.Warn().Err(err).Msg("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		count := incr.Val()
		remaining := int64(rl.rate) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rate))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.rate) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
