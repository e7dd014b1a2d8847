package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivia_backend/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func useRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	InitRedisRateLimiter(client)
	t.Cleanup(func() {
		InitRedisRateLimiter(nil)
		_ = client.Close()
	})
	return mr
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ok(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }

func TestRedisRateLimit(t *testing.T) {
	mr := useRedis(t)

	r := gin.New()
	r.GET("/test", RedisRateLimit(2, time.Minute), ok)

	for i := 0; i < 2; i++ {
		w := do(r, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, do(r, "").Code)
}

func TestRateLimitFallsBackWithoutRedis(t *testing.T) {
	InitRedisRateLimiter(nil)

	r := gin.New()
	r.GET("/test", RedisRateLimit(3, time.Hour), ok)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(r, "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(r, "").Code)
}

func TestRateLimitFallsBackOnRedisError(t *testing.T) {
	mr := useRedis(t)
	mr.Close()

	r := gin.New()
	r.GET("/test", RedisRateLimit(1, time.Hour), ok)

	w := do(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "redis-error", w.Header().Get("X-RateLimit-Error"))
	assert.Equal(t, http.StatusTooManyRequests, do(r, "").Code)
}

func TestGameRateLimitIsPerFID(t *testing.T) {
	useRedis(t)
	require.NoError(t, service.InitJWT("test-secret"))

	r := gin.New()
	r.GET("/test", JWT(), GameRateLimit(1, time.Minute), ok)

	alice, err := service.GenerateJWT(1, time.Hour)
	require.NoError(t, err)
	bob, err := service.GenerateJWT(2, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, do(r, alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, alice).Code)
	assert.Equal(t, http.StatusOK, do(r, bob).Code)
}

func TestGameRateLimitRequiresFID(t *testing.T) {
	r := gin.New()
	r.GET("/test", GameRateLimit(1, time.Minute), ok)
	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
}
