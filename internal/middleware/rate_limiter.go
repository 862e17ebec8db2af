package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pharmapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a fixed-window limiter of limit requests per window per
// client IP, counted in Redis so every replica shares the budget. scope keeps
// separate limiters (login, api) from sharing counters. limit <= 0 disables it.
//
// A Redis failure lets the request through: the limiter protects the API, it
// is not allowed to take it down.
func RateLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || rdb == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", scope, c.ClientIP())

		// INCR and EXPIRE NX share one MULTI, so a counter never outlives its
		// window. NX also repairs a key left without a TTL.
		var incr *redis.IntCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		count := incr.Val()

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(c, rdb, key, window)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Too many requests. Try again shortly."))
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(c *gin.Context, rdb *redis.Client, key string, window time.Duration) int {
	ttl, err := rdb.TTL(c.Request.Context(), key).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return int(ttl.Seconds()) + 1
}
