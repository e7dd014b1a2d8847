package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/http/handlers"
	"trivia_backend/internal/leaderboard"
	"trivia_backend/internal/repository/memory"
	"trivia_backend/internal/service"
	"trivia_backend/internal/week"
	"trivia_backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cronSecret = "cron-secret"

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type apiEnv struct {
	router *gin.Engine
	store  *memory.Store
	now    time.Time
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, service.InitJWT("test-secret"))

	env := &apiEnv{now: testNow}
	clock := func() time.Time { return env.now }
	store := memory.NewStore().WithClock(clock)
	env.store = store

	tickets := service.NewTicketService(store)
	h := &handlers.Handler{
		Bets: service.NewBetService(store, tickets, nil, service.BetConfig{
			MinBet: 1_000,
			MaxBet: 1_000_000,
			Window: week.Window{AlwaysOpen: true},
		}).WithClock(clock),
		Tickets:     tickets,
		Lottery:     service.NewLotteryService(store, tickets, nil, nil, nil).WithClock(clock),
		Burns:       service.NewBurnService(store, nil, nil, nil).WithClock(clock),
		Sync:        service.NewContractSync(store, nil).WithClock(clock),
		Wallets:     service.NewWalletService(store, nil, service.WalletConfig{}).WithClock(clock),
		Reconciler:  service.NewReconciler(store, nil, nil, service.ReconcileConfig{}).WithClock(clock),
		Leaderboard: leaderboard.NewService(leaderboard.Config{Store: leaderboard.NewMemoryStore()}),
		Now:         clock,
	}

	env.router = gin.New()
	RegisterRoutes(env.router, h, handlers.NewHealthHandler(store, nil, "test"), ws.NewHub(), RouteConfig{
		CronSecret:    cronSecret,
		APIRateLimit:  1_000,
		GameRateLimit: 1_000,
	})

	var qs []domain.Question
	for _, d := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard, domain.DifficultyExpert} {
		for i := 0; i < 5; i++ {
			qs = append(qs, domain.Question{
				QuestionID:   fmt.Sprintf("%s-%d", d, i),
				Text:         "q",
				Options:      []string{"a", "b", "c", "d"},
				CorrectIndex: i % 4,
				Difficulty:   d,
				Active:       true,
			})
		}
	}
	require.NoError(t, store.Questions().Insert(context.Background(), qs))
	return env
}

func (e *apiEnv) token(t *testing.T, fid int64) string {
	t.Helper()
	tok, err := service.GenerateJWT(fid, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) fund(t *testing.T, fid, amount int64) {
	t.Helper()
	_, err := e.store.Accounts().Apply(context.Background(), fid, domain.AccountDelta{Balance: amount})
	require.NoError(t, err)
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (e *apiEnv) correctIndex(t *testing.T, gameID string, right bool) int {
	t.Helper()
	g, err := e.store.Games().Get(context.Background(), gameID)
	require.NoError(t, err)
	idx := g.Questions[g.CurrentQuestion-1].CorrectIndex
	if right {
		return idx
	}
	return (idx + 1) % 4
}

func TestBetRoutesRequireAuth(t *testing.T) {
	env := newAPIEnv(t)
	for _, path := range []string{"/api/bet-mode/status", "/api/bet-mode/transactions"} {
		code, _ := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
	code, _ := env.do(t, http.MethodPost, "/api/bet-mode/start", "bad", map[string]any{"betAmount": 1000})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStartAnswerFlow(t *testing.T) {
	env := newAPIEnv(t)
	env.fund(t, 7, 100_000)
	tok := env.token(t, 7)

	code, body := env.do(t, http.MethodPost, "/api/bet-mode/start", tok, map[string]any{"betAmount": 10_000})
	require.Equal(t, http.StatusOK, code, body)
	gameID := body["game"].(map[string]any)["gameId"].(string)
	require.NotEmpty(t, gameID)
	assert.Equal(t, map[string]any{"qtBalance": float64(90_000), "qtLockedBalance": float64(10_000)}, body["balances"])

	// second start while active is rejected
	code, body = env.do(t, http.MethodPost, "/api/bet-mode/start", tok, map[string]any{"betAmount": 10_000})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.ErrActiveGameExists.Error(), body["error"])

	code, body = env.do(t, http.MethodGet, "/api/bet-mode/status", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, gameID, body["activeGame"].(map[string]any)["gameId"])

	code, body = env.do(t, http.MethodPost, "/api/bet-mode/answer", tok, map[string]any{
		"gameId": gameID, "answerIndex": env.correctIndex(t, gameID, false),
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["correct"])
	assert.Equal(t, true, body["completed"])

	code, body = env.do(t, http.MethodGet, "/api/bet-mode/transactions?limit=10", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["transactions"], 2)

	code, body = env.do(t, http.MethodGet, "/api/bet-mode/pool/"+week.ID(testNow), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3_500), body["currentPrizePool"])
}

func TestStartValidation(t *testing.T) {
	env := newAPIEnv(t)
	env.fund(t, 1, 5_000)
	tok := env.token(t, 1)

	tests := map[string]struct {
		body any
		want int
	}{
		"missing amount": {body: map[string]any{}, want: http.StatusBadRequest},
		"below minimum":  {body: map[string]any{"betAmount": 10}, want: http.StatusBadRequest},
		"no balance":     {body: map[string]any{"betAmount": 5_000}, want: http.StatusBadRequest},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPost, "/api/bet-mode/start", tok, tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAnswerUnknownGame(t *testing.T) {
	env := newAPIEnv(t)
	code, _ := env.do(t, http.MethodPost, "/api/bet-mode/answer", env.token(t, 1), map[string]any{"gameId": "nope", "answerIndex": 0})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/bet-mode/answer", env.token(t, 1), map[string]any{"gameId": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWalletRoutesWithoutChain(t *testing.T) {
	env := newAPIEnv(t)
	tok := env.token(t, 1)

	code, _ := env.do(t, http.MethodGet, "/api/bet-mode/platform-wallet", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, "/api/bet-mode/deposit/verify", tok, map[string]any{"txHash": "0x01"})
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = env.do(t, http.MethodPost, "/api/bet-mode/withdraw/prepare", tok, map[string]any{"amount": -5})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCronRoutes(t *testing.T) {
	env := newAPIEnv(t)
	current := week.ID(testNow)

	code, _ := env.do(t, http.MethodPost, "/api/cron/snapshot?weekId="+current, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = env.do(t, http.MethodPost, "/api/cron/snapshot?weekId="+current, "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := env.do(t, http.MethodPost, "/api/cron/snapshot?weekId="+current, cronSecret, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.ErrWeekNotEnded.Error(), body["error"])

	// one loss, then the week ends
	env.fund(t, 1, 100_000)
	tok := env.token(t, 1)
	_, body = env.do(t, http.MethodPost, "/api/bet-mode/start", tok, map[string]any{"betAmount": 10_000})
	gameID := body["game"].(map[string]any)["gameId"].(string)
	env.do(t, http.MethodPost, "/api/bet-mode/answer", tok, map[string]any{"gameId": gameID, "answerIndex": env.correctIndex(t, gameID, false)})
	env.now = testNow.Add(7 * 24 * time.Hour)

	// the default week is the one that just ended
	code, body = env.do(t, http.MethodGet, "/api/cron/snapshot", cronSecret, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, current, body["result"].(map[string]any)["weekId"])

	code, body = env.do(t, http.MethodPost, "/api/cron/snapshot", cronSecret, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["skipped"])

	// the draw succeeds, the burn needs a chain
	code, body = env.do(t, http.MethodPost, "/api/cron/lottery-draw-and-burn", cronSecret, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code, body)
	assert.Equal(t, service.ErrChainUnavailable.Error(), body["error"])
	result, ok := body["result"].(map[string]any)
	require.True(t, ok, body)
	draw := result["draw"].(map[string]any)
	assert.Equal(t, current, draw["weekId"])
	assert.NotEmpty(t, draw["seed"])

	code, body = env.do(t, http.MethodPost, "/api/cron/lottery-draw", cronSecret, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["skipped"])

	for _, path := range []string{"/api/cron/process-outbox", "/api/cron/reconcile-balances", "/api/cron/expire-withdrawals"} {
		code, _ = env.do(t, http.MethodPost, path, cronSecret, nil)
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
	}
}

func TestLeaderboardAndHealth(t *testing.T) {
	env := newAPIEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/leaderboard", env.token(t, 1), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, week.ID(testNow), body["weekId"])

	code, _ = env.do(t, http.MethodGet, "/api/leaderboard?weekId=bad", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	code, _ = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}
