package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"trivia_backend/internal/db"
	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository"
	"trivia_backend/internal/repository/mongodb"
	"trivia_backend/internal/service"
	"trivia_backend/internal/week"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A Wednesday, well inside the betting window.
var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

// openStore connects to MONGODB_TEST_URI and hands out a throwaway database.
func openStore(t *testing.T) *mongodb.Store {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "trivia_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	client, database, err := db.ConnectMongo(ctx, uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	store := mongodb.NewStore(client, database, os.Getenv("MONGODB_TEST_TRANSACTIONS") == "1")
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func seedQuestions(t *testing.T, store repository.Store) {
	t.Helper()
	var qs []domain.Question
	for _, d := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard, domain.DifficultyExpert} {
		for i := 0; i < 5; i++ {
			qs = append(qs, domain.Question{
				QuestionID:   fmt.Sprintf("%s-%d", d, i),
				Text:         fmt.Sprintf("%s question %d", d, i),
				Options:      []string{"a", "b", "c", "d"},
				CorrectIndex: i % 4,
				Difficulty:   d,
				Active:       true,
			})
		}
	}
	require.NoError(t, store.Questions().Insert(context.Background(), qs))
}

func wrongAnswer(t *testing.T, store repository.Store, gameID string) int {
	t.Helper()
	g, err := store.Games().Get(context.Background(), gameID)
	require.NoError(t, err)
	require.NotNil(t, g)
	q := g.Questions[g.CurrentQuestion-1]
	return (q.CorrectIndex + 1) % len(q.Options)
}

func TestMongoLossSettlesIntoPoolAndDraw(t *testing.T) {
	store := openStore(t)
	seedQuestions(t, store)
	ctx := context.Background()
	c := &clock{now: testNow}
	weekID := week.ID(testNow)

	tickets := service.NewTicketService(store)
	bets := service.NewBetService(store, tickets, nil, service.BetConfig{
		MinBet: 1_000,
		MaxBet: 1_000_000,
		Window: week.Window{AlwaysOpen: true},
	}).WithClock(c.Now)
	lottery := service.NewLotteryService(store, tickets, nil, nil, nil).WithClock(c.Now)

	for _, fid := range []int64{7, 3} {
		_, err := store.Accounts().Apply(ctx, fid, domain.AccountDelta{Balance: 100_000, Deposited: 100_000})
		require.NoError(t, err)

		res, err := bets.Start(ctx, fid, 10_000)
		require.NoError(t, err)

		_, err = bets.Start(ctx, fid, 10_000)
		assert.ErrorIs(t, err, service.ErrActiveGameExists)

		out, err := bets.Answer(ctx, fid, res.Game.GameID, wrongAnswer(t, store, res.Game.GameID))
		require.NoError(t, err)
		assert.Equal(t, domain.GameStatusLost, out.Game.Status)
	}

	a, err := store.Accounts().Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, int64(90_000), a.QTBalance)
	assert.Zero(t, a.QTLockedBalance)

	p, err := store.Pools().Get(ctx, weekID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(20_000), p.TotalLosses)
	assert.Equal(t, int64(7_000), p.LotteryPool)
	assert.Equal(t, int64(12_000), p.ToBurnAccumulated)

	pending, err := store.Outbox().CountPending(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	_, end, err := week.Bounds(weekID)
	require.NoError(t, err)
	c.now = end.Add(time.Hour)

	snap, err := lottery.Snapshot(ctx, weekID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Participants)
	assert.Equal(t, int64(7_000), snap.FinalPool)

	ts, err := store.Tickets().ListByWeek(ctx, weekID)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, int64(3), ts[0].FID)
	assert.Zero(t, ts[0].TicketRangeStart)
	assert.Equal(t, ts[0].TicketRangeEnd, ts[1].TicketRangeStart)

	res, err := lottery.Draw(ctx, weekID)
	require.NoError(t, err)
	var won int64
	for _, fid := range []int64{3, 7} {
		a, err := store.Accounts().Get(ctx, fid)
		require.NoError(t, err)
		won += a.QTTotalWon
	}
	assert.Equal(t, snap.FinalPool, won+res.Outcome.RolloverOut)

	_, err = lottery.Draw(ctx, weekID)
	assert.ErrorIs(t, err, service.ErrAlreadyDone)
}

func TestMongoPayoutMarkersAreUnique(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	p := &domain.LotteryPayout{WeekID: "2026-W42", Position: 1, FID: 9, Tier: 1, Amount: 500}
	require.NoError(t, store.Payouts().Insert(ctx, p))
	err := store.Payouts().Insert(ctx, &domain.LotteryPayout{WeekID: "2026-W42", Position: 1, FID: 9, Tier: 1, Amount: 500})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	list, err := store.Payouts().ListByWeek(ctx, "2026-W42")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMongoWalletLinkIsExclusive(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Users().LinkWallet(ctx, 1, "0xabc"))
	err := store.Users().LinkWallet(ctx, 2, "0xabc")
	assert.ErrorIs(t, err, repository.ErrWalletAlreadyTaken)

	u, err := store.Users().GetByWallet(ctx, "0xabc")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(1), u.FID)
}
