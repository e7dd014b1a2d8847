package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"trivia_backend/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var redisClient redis.UniversalClient

// InitRedisRateLimiter sets the shared Redis client used by the limiters.
// With a nil client every limiter falls back to an in-process token bucket.
func InitRedisRateLimiter(client redis.UniversalClient) {
	redisClient = client
}

// RedisRateLimit is a fixed-window limiter per client IP using Redis INCR/EXPIRE.
// key format: rl:<window_seconds>:<ip>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	local := newLocalLimiter(maxRequests, window)
	return func(c *gin.Context) {
		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		if !allow(c, key, maxRequests, window, local, "X-RateLimit") {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// GameRateLimit limits game actions per fid rather than per IP.
// Requires JWT to run before it.
func GameRateLimit(maxActions int, window time.Duration) gin.HandlerFunc {
	local := newLocalLimiter(maxActions, window)
	return func(c *gin.Context) {
		fid, ok := GetFID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		key := "game_rl:" + strconv.FormatInt(fid, 10) + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		if !allow(c, key, maxActions, window, local, "X-GameRateLimit") {
			RLBlocked.WithLabelValues("game:" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "game rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues("game:" + c.FullPath()).Inc()
		c.Next()
	}
}

func allow(c *gin.Context, key string, limit int, window time.Duration, local *localLimiter, header string) bool {
	if redisClient == nil {
		return local.allow(key)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	val, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		// fail over to the local bucket so a Redis outage does not lift the limit
		logger.Warn("rate limiter redis error", "key", key, "error", err)
		c.Header(header+"-Error", "redis-error")
		return local.allow(key)
	}
	if val == 1 {
		redisClient.Expire(ctx, key, window)
	}

	c.Header(header+"-Limit", strconv.Itoa(limit))
	c.Header(header+"-Remaining", strconv.FormatInt(max(0, int64(limit)-val), 10))
	return val <= int64(limit)
}

// localLimiter keeps one token bucket per key, refilled at limit/window.
type localLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	window   time.Duration
	limiters map[string]*localEntry
}

type localEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &localLimiter{
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		window:   window,
		limiters: make(map[string]*localEntry),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
		if len(l.limiters) > 10_000 {
			l.evict(now)
		}
	}
	e.seen = now
	return e.limiter.AllowN(now, 1)
}

// evict drops buckets idle for more than a window, they would be full again anyway.
func (l *localLimiter) evict(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.seen) > l.window {
			delete(l.limiters, k)
		}
	}
}
