package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"trivia_backend/internal/chain"
	"trivia_backend/internal/config"
	"trivia_backend/internal/db"
	"trivia_backend/internal/event"
	httpServer "trivia_backend/internal/http"
	"trivia_backend/internal/http/handlers"
	"trivia_backend/internal/http/middleware"
	"trivia_backend/internal/leaderboard"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/metrics"
	"trivia_backend/internal/notify"
	"trivia_backend/internal/repository"
	"trivia_backend/internal/repository/memory"
	"trivia_backend/internal/repository/mongodb"
	"trivia_backend/internal/scheduler"
	"trivia_backend/internal/service"
	"trivia_backend/internal/ws"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	if err := service.InitJWT(cfg.JWTSecret); err != nil {
		logger.Fatal("init jwt", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	rdb := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
		middleware.InitRedisRateLimiter(rdb)
	}

	gateway := dialChain(ctx, cfg)
	if c, ok := gateway.(interface{ Close() }); ok {
		defer c.Close()
	}
	notifier := notify.NewDiscord(cfg.DiscordWebhookURL)

	bus := event.NewBus(0)
	metrics.Subscribe(bus)

	var lbStore leaderboard.Store = leaderboard.NewMemoryStore()
	if rdb != nil {
		lbStore = leaderboard.NewRedisStore(rdb, "leaderboard:")
	}
	board := leaderboard.NewService(leaderboard.Config{EventBus: bus, Store: lbStore})

	hub := ws.NewHub()
	hub.Subscribe(bus)

	addresses := chain.Addresses{
		ChainID:        cfg.ChainID,
		Token:          cfg.TokenAddress,
		Vault:          cfg.VaultAddress,
		PlatformWallet: cfg.PlatformWallet,
		Burn:           cfg.BurnAddress,
		Decimals:       cfg.TokenDecimals,
	}
	tickets := service.NewTicketService(store)
	h := &handlers.Handler{
		Bets: service.NewBetService(store, tickets, bus, service.BetConfig{
			MinBet: cfg.MinBet,
			MaxBet: cfg.MaxBet,
			Window: cfg.BetWindow(),
		}),
		Tickets:    tickets,
		Lottery:    service.NewLotteryService(store, tickets, bus, gateway, notifier),
		Burns:      service.NewBurnService(store, bus, gateway, notifier),
		Sync:       service.NewContractSync(store, gateway),
		Wallets:    service.NewWalletService(store, gateway, service.WalletConfig{WithdrawalTTL: cfg.WithdrawalTTL, Addresses: addresses}),
		Reconciler: service.NewReconciler(store, gateway, notifier, service.ReconcileConfig{
			Tolerance:   cfg.ReconcileTolerance,
			Concurrency: cfg.ReconcileConcurrency,
			RPCRate:     cfg.RPCRateLimit,
		}),
		Leaderboard: board,
	}

	var redisPing handlers.Pinger
	if rdb != nil {
		redisPing = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.PprofEnabled {
		pprof.Register(r)
	}

	health := handlers.NewHealthHandler(store, redisPing, version).
		WithCheck("questions", handlers.PingFunc(h.Bets.CheckQuestions), false)

	httpServer.RegisterRoutes(r, h, health, hub, httpServer.RouteConfig{
		CronSecret:     cfg.CronSecret,
		AllowedOrigin:  cfg.AllowedOrigin,
		APIRateLimit:   cfg.APIRateLimit,
		APIRateWindow:  time.Duration(cfg.APIRateWindow) * time.Second,
		GameRateLimit:  cfg.GameRateLimit,
		GameRateWindow: time.Duration(cfg.GameRateWindow) * time.Second,
	})

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = startScheduler(cfg, h, rdb)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	bus.Stop()

	logger.Info("server exited")
}

// openStore picks MongoDB, or the in-memory store when no URI is configured.
func openStore(ctx context.Context, cfg *config.Config) repository.Store {
	if cfg.MongoURI == "" {
		return memory.NewStore()
	}

	client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("mongodb", "error", err)
	}
	store := mongodb.NewStore(client, database, cfg.MongoTransactions)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("mongodb indexes", "error", err)
	}
	return store
}

// dialChain returns an untyped nil when the chain is not configured, so services see
// a nil Chain and answer with ErrChainUnavailable.
func dialChain(ctx context.Context, cfg *config.Config) service.Chain {
	if !cfg.ChainConfigured() {
		logger.Warn("chain not configured, deposits, withdrawals, syncs and burns are disabled")
		return nil
	}

	client, err := chain.Dial(ctx, chain.Options{
		RPCURL:         cfg.RPCURL,
		ChainID:        cfg.ChainID,
		TokenAddress:   cfg.TokenAddress,
		VaultAddress:   cfg.VaultAddress,
		PlatformWallet: cfg.PlatformWallet,
		BurnAddress:    cfg.BurnAddress,
		Decimals:       cfg.TokenDecimals,
		AdminKey:       cfg.AdminSignerPrivateKey,
		Timeout:        cfg.RPCTimeout,
	})
	if err != nil {
		logger.Fatal("chain", "error", err)
	}
	return client
}

func startScheduler(cfg *config.Config, h *handlers.Handler, rdb *redis.Client) *scheduler.Scheduler {
	var locker scheduler.Locker
	if rdb != nil {
		locker = scheduler.NewRedisLocker(rdb, "cron:")
	}

	sched, err := scheduler.New(scheduler.Config{
		SnapshotCron:   cfg.SnapshotCron,
		DrawCron:       cfg.DrawCron,
		BurnCron:       cfg.BurnCron,
		ReconcileCron:  cfg.ReconcileCron,
		OutboxInterval: cfg.OutboxInterval,
	}, scheduler.Jobs{
		Lottery:    h.Lottery,
		Burns:      h.Burns,
		Sync:       h.Sync,
		Wallets:    h.Wallets,
		Reconciler: h.Reconciler,
	}, locker)
	if err != nil {
		logger.Fatal("scheduler", "error", err)
	}
	sched.Start()
	return sched
}
