package http

import (
	"time"

	"trivia_backend/internal/http/handlers"
	"trivia_backend/internal/http/middleware"
	"trivia_backend/internal/ws"

	"github.com/gin-gonic/gin"
)

// RouteConfig carries the limits and secrets the routes need.
type RouteConfig struct {
	CronSecret     string
	AllowedOrigin  string
	APIRateLimit   int
	APIRateWindow  time.Duration
	GameRateLimit  int
	GameRateWindow time.Duration
}

func (c RouteConfig) withDefaults() RouteConfig {
	if c.APIRateLimit <= 0 {
		c.APIRateLimit = 120
	}
	if c.APIRateWindow <= 0 {
		c.APIRateWindow = time.Minute
	}
	if c.GameRateLimit <= 0 {
		c.GameRateLimit = 60
	}
	if c.GameRateWindow <= 0 {
		c.GameRateWindow = time.Minute
	}
	return c
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, cfg RouteConfig) {
	cfg = cfg.withDefaults()

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	api := r.Group("/api")
	api.Use(middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))

	// Game rate limiter middleware (per fid, not per IP)
	gameRL := middleware.GameRateLimit(cfg.GameRateLimit, cfg.GameRateWindow)

	bet := api.Group("/bet-mode")
	{
		bet.GET("/platform-wallet", h.PlatformWallet)
		bet.GET("/pool/:weekId", h.Pool)
		bet.GET("/pool", h.Pool)

		user := bet.Group("", middleware.JWT())
		user.GET("/status", h.Status)
		user.GET("/transactions", h.Transactions)
		user.POST("/start", gameRL, h.Start)
		user.POST("/answer", gameRL, h.Answer)
		user.POST("/cash-out", gameRL, h.CashOut)
		user.POST("/deposit/verify", gameRL, h.VerifyDeposit)
		user.POST("/deposit/sync", gameRL, h.SyncDeposit)
		user.POST("/withdraw/prepare", gameRL, h.PrepareWithdrawal)
		user.POST("/withdraw", gameRL, h.ConfirmWithdrawal)
	}

	api.GET("/leaderboard", middleware.OptionalJWT(), h.GetLeaderboard)

	// Cron endpoints accept both verbs, schedulers differ in what they send
	cron := r.Group("/api/cron", middleware.CronAuth(cfg.CronSecret))
	cronRoutes := map[string]gin.HandlerFunc{
		"/snapshot":              h.Snapshot,
		"/lottery-draw":          h.Draw,
		"/burn":                  h.Burn,
		"/lottery-draw-and-burn": h.DrawAndBurn,
		"/reconcile-balances":    h.ReconcileBalances,
		"/process-outbox":        h.ProcessOutbox,
		"/expire-withdrawals":    h.ExpireWithdrawals,
	}
	for path, fn := range cronRoutes {
		cron.GET(path, fn)
		cron.POST(path, fn)
	}

	r.GET("/ws/pool", ws.HandleWS(hub, cfg.AllowedOrigin))
}
