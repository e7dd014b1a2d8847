package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is any dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type dependency struct {
	name     string
	pinger   Pinger
	required bool
}

// HealthHandler serves the health endpoints.
type HealthHandler struct {
	deps      []dependency
	startTime time.Time
	version   string
}

// NewHealthHandler checks the store and, when set, redis. Only the store is required:
// the limiters and the leaderboard keep working without redis.
func NewHealthHandler(store Pinger, redis Pinger, version string) *HealthHandler {
	h := &HealthHandler{
		deps:      []dependency{{name: "database", pinger: store, required: true}},
		startTime: time.Now(),
		version:   version,
	}
	if redis != nil {
		h.deps = append(h.deps, dependency{name: "redis", pinger: redis})
	}
	return h
}

// WithCheck adds a named dependency to Readiness.
func (h *HealthHandler) WithCheck(name string, p Pinger, required bool) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, pinger: p, required: required})
	return h
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness (k8s liveness check)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings every dependency. A failing optional one only degrades the status.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string, len(h.deps))
	for _, d := range h.deps {
		err := d.pinger.Ping(ctx)
		switch {
		case err == nil:
			checks[d.name] = "healthy"
		case d.required:
			checks[d.name] = "unhealthy: " + err.Error()
			status = "unhealthy"
		default:
			checks[d.name] = "degraded: " + err.Error()
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health only pings the required dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	for _, d := range h.deps {
		if !d.required {
			continue
		}
		if err := d.pinger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  d.name + " unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}
