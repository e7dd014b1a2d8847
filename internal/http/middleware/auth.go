package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"trivia_backend/internal/service"

	"github.com/gin-gonic/gin"
)

// FIDKey is the gin context key holding the authenticated Farcaster id.
const FIDKey = "fid"

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// JWT requires a valid user token and stores its fid in the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			AuthFailures.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		fid, err := service.ParseJWT(token)
		if err != nil {
			AuthFailures.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(FIDKey, fid)
		c.Next()
	}
}

// CronAuth protects the cron endpoints with a shared secret.
// An empty secret rejects every request.
func CronAuth(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(bearer(c))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			AuthFailures.WithLabelValues("cron").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// GetFID returns the fid stored by JWT.
func GetFID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(FIDKey)
	if !ok {
		return 0, false
	}
	fid, ok := v.(int64)
	return fid, ok && fid > 0
}

// OptionalJWT stores the fid when a valid token is present and lets anonymous requests through.
func OptionalJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearer(c); token != "" {
			if fid, err := service.ParseJWT(token); err == nil {
				c.Set(FIDKey, fid)
			}
		}
		c.Next()
	}
}
