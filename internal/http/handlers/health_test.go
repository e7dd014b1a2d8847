package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := map[string]struct {
		store, redis Pinger
		code         int
		status       string
	}{
		"all up":     {up, up, http.StatusOK, "healthy"},
		"no redis":   {up, nil, http.StatusOK, "healthy"},
		"redis down": {up, down, http.StatusOK, "degraded"},
		"store down": {down, up, http.StatusServiceUnavailable, "unhealthy"},
		"both down":  {down, down, http.StatusServiceUnavailable, "unhealthy"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			h := NewHealthHandler(tc.store, tc.redis, "test")
			r.GET("/readyz", h.Readiness)
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, tc.code, w.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)

			// redis never fails the plain health check
			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.status != "unhealthy", w.Code == http.StatusOK)
		})
	}
}

func TestReadinessExtraCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := PingFunc(func(context.Context) error { return nil })
	empty := PingFunc(func(context.Context) error { return errors.New("not enough questions available") })

	r := gin.New()
	h := NewHealthHandler(up, nil, "test").WithCheck("questions", empty, false)
	r.GET("/readyz", h.Readiness)
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "degraded: not enough questions available", body.Checks["questions"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
