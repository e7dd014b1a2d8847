package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("CRON_SECRET", "cron")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("MIN_BET", "")
	t.Setenv("MAX_BET", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, int64(10_000), cfg.MinBet)
	assert.Equal(t, DefaultBurnAddress, cfg.BurnAddress)
	assert.True(t, cfg.BetWindowAlwaysOpen)
	assert.False(t, cfg.ChainConfigured())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("CRON_SECRET", "cron")
	t.Setenv("MIN_BET", "500")
	t.Setenv("MAX_BET", "5000")
	t.Setenv("RPC_TIMEOUT", "45")
	t.Setenv("WITHDRAWAL_TTL", "10m")
	t.Setenv("ADMIN_SIGNER_PRIVATE_KEY", "0xabc")
	t.Setenv("BET_WINDOW_ALWAYS_OPEN", "false")

	cfg := Load()
	assert.Equal(t, int64(500), cfg.MinBet)
	assert.Equal(t, int64(5000), cfg.MaxBet)
	assert.Equal(t, 45*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 10*time.Minute, cfg.WithdrawalTTL)
	assert.Equal(t, "abc", cfg.AdminSignerPrivateKey)
	assert.False(t, cfg.BetWindowAlwaysOpen)
}

func TestBetWindow(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("CRON_SECRET", "cron")
	sunday := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

	t.Setenv("BET_WINDOW_ALWAYS_OPEN", "false")
	t.Setenv("BET_WINDOW_CLOSE_BEFORE", "")
	w := Load().BetWindow()
	assert.False(t, w.IsOpen(sunday))
	assert.True(t, w.IsOpen(sunday.Add(-time.Hour)))

	t.Setenv("BET_WINDOW_CLOSE_BEFORE", "10m")
	assert.True(t, Load().BetWindow().IsOpen(sunday))

	t.Setenv("BET_WINDOW_ALWAYS_OPEN", "true")
	assert.True(t, Load().BetWindow().IsOpen(sunday.Add(25*time.Minute)))
}
