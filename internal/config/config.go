package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"trivia_backend/internal/logger"
	"trivia_backend/internal/week"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AllowedOrigin string
	JWTSecret     string
	CronSecret    string

	// storage
	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	// chain
	RPCURL                string
	ChainID               int64
	TokenAddress          string
	TokenDecimals         int32
	VaultAddress          string
	AdminSignerPrivateKey string
	PlatformWallet        string
	BurnAddress           string
	RPCTimeout            time.Duration
	RPCRateLimit          float64

	DiscordWebhookURL string

	// bet limits
	MinBet              int64
	MaxBet              int64
	BetWindowAlwaysOpen bool
	BetWindowClose      time.Duration
	GameRateLimit       int
	GameRateWindow      int
	APIRateLimit        int
	APIRateWindow       int

	// reconciliation and withdrawals
	ReconcileTolerance   int64
	ReconcileConcurrency int
	WithdrawalTTL        time.Duration

	// scheduler
	SchedulerEnabled bool
	SnapshotCron     string
	DrawCron         string
	BurnCron         string
	ReconcileCron    string
	OutboxInterval   time.Duration

	PprofEnabled bool
	LogLevel     string
	LogJSON      bool
}

const DefaultBurnAddress = "0x000000000000000000000000000000000000dEaD"

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	cronSecret := os.Getenv("CRON_SECRET")
	if cronSecret == "" {
		logger.Fatal("CRON_SECRET is not set")
	}

	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		logger.Warn("MONGODB_URI is not set, using in-memory store (dev only)")
	}

	cfg := &Config{
		AppPort:       envString("APP_PORT", "8080"),
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		JWTSecret:     jwtSecret,
		CronSecret:    cronSecret,

		MongoURI:          mongoURI,
		MongoDatabase:     os.Getenv("MONGODB_DATABASE"),
		MongoTransactions: envBool("MONGODB_TRANSACTIONS", true),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           envInt("REDIS_DB", 0),

		RPCURL:                os.Getenv("BASE_RPC_URL"),
		ChainID:               envInt64("CHAIN_ID", 8453), // Base mainnet
		TokenAddress:          os.Getenv("QT_TOKEN_ADDRESS"),
		TokenDecimals:         int32(envInt("QT_DECIMALS", 18)),
		VaultAddress:          os.Getenv("BET_MODE_VAULT_ADDRESS"),
		AdminSignerPrivateKey: strings.TrimPrefix(os.Getenv("ADMIN_SIGNER_PRIVATE_KEY"), "0x"),
		PlatformWallet:        os.Getenv("PLATFORM_WALLET_ADDRESS"),
		BurnAddress:           envString("BURN_ADDRESS", DefaultBurnAddress),
		RPCTimeout:            envDuration("RPC_TIMEOUT", 30*time.Second),
		RPCRateLimit:          envFloat("RPC_RATE_LIMIT", 10),

		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),

		MinBet:              envInt64("MIN_BET", 10_000),
		MaxBet:              envInt64("MAX_BET", 10_000_000),
		BetWindowAlwaysOpen: envBool("BET_WINDOW_ALWAYS_OPEN", true),
		BetWindowClose:      envDuration("BET_WINDOW_CLOSE_BEFORE", week.DefaultCloseBefore),
		GameRateLimit:       envInt("GAME_RATE_LIMIT", 60), // макс действий за окно
		GameRateWindow:      envInt("GAME_RATE_WINDOW", 60),
		APIRateLimit:        envInt("API_RATE_LIMIT", 120),
		APIRateWindow:       envInt("API_RATE_WINDOW_SECONDS", 60),

		ReconcileTolerance:   envInt64("RECONCILE_TOLERANCE", 1),
		ReconcileConcurrency: envInt("RECONCILE_CONCURRENCY", 8),
		WithdrawalTTL:        envDuration("WITHDRAWAL_TTL", 30*time.Minute),

		SchedulerEnabled: envBool("SCHEDULER_ENABLED", false),
		SnapshotCron:     envString("SNAPSHOT_CRON", "5 0 * * 1"),
		DrawCron:         envString("DRAW_CRON", "15 0 * * 1"),
		BurnCron:         envString("BURN_CRON", "30 0 * * 1"),
		ReconcileCron:    envString("RECONCILE_CRON", "0 */6 * * *"),
		OutboxInterval:   envDuration("OUTBOX_INTERVAL", 15*time.Second),

		PprofEnabled: envBool("PPROF_ENABLED", false),
		LogLevel:     envString("LOG_LEVEL", "info"),
		LogJSON:      envBool("LOG_JSON", false),
	}

	if cfg.MinBet > cfg.MaxBet {
		logger.Fatal("MIN_BET is greater than MAX_BET", "min_bet", cfg.MinBet, "max_bet", cfg.MaxBet)
	}
	return cfg
}

// ChainConfigured reports whether the vault gateway can be built.
// BetWindow is the betting window the bet service enforces.
func (c *Config) BetWindow() week.Window {
	return week.Window{AlwaysOpen: c.BetWindowAlwaysOpen, CloseBefore: c.BetWindowClose}
}

func (c *Config) ChainConfigured() bool {
	return c.RPCURL != "" && c.TokenAddress != "" && c.VaultAddress != "" && c.AdminSignerPrivateKey != ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		logger.Warn("invalid int in env, using default", "key", key, "value", v)
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
		logger.Warn("invalid int in env, using default", "key", key, "value", v)
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// durations accept Go syntax ("90s") or plain seconds
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	logger.Warn("invalid duration in env, using default", "key", key, "value", v)
	return def
}
