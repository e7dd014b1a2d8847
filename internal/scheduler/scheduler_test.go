package scheduler

import (
	"context"
	"testing"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository/memory"
	"trivia_backend/internal/service"
	"trivia_backend/internal/week"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 21, 0, 10, 0, 0, time.UTC)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := NewRedisLocker(client, "")

	release, ok, err := l.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("cron:snapshot"))

	_, ok, err = l.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("cron:snapshot"))

	// an expired lock is free again, and the stale release leaves the new owner alone
	stale, ok, err := l.Acquire(ctx, "burn", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)
	_, ok, err = l.Acquire(ctx, "burn", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	stale()
	assert.True(t, mr.Exists("cron:burn"))
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	release, ok, err := l.Acquire(context.Background(), "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.Acquire(context.Background(), "a", time.Minute)
	assert.False(t, ok)
	_, ok, _ = l.Acquire(context.Background(), "b", time.Minute)
	assert.True(t, ok)

	release()
	_, ok, _ = l.Acquire(context.Background(), "a", time.Minute)
	assert.True(t, ok)
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	store := memory.NewStore()
	lottery := service.NewLotteryService(store, service.NewTicketService(store), nil, nil, nil)

	_, err := New(Config{SnapshotCron: "every monday"}, Jobs{Lottery: lottery}, nil)
	assert.Error(t, err)

	s, err := New(Config{SnapshotCron: "5 0 * * 1"}, Jobs{Lottery: lottery}, nil)
	require.NoError(t, err)
	assert.Len(t, s.jobs, 1)
}

func TestRunSnapshotForEndedWeek(t *testing.T) {
	_, client := newRedis(t)
	clock := func() time.Time { return testNow }
	store := memory.NewStore().WithClock(clock)
	tickets := service.NewTicketService(store)
	lottery := service.NewLotteryService(store, tickets, nil, nil, nil).WithClock(clock)

	s, err := New(Config{SnapshotCron: "5 0 * * 1", DrawCron: "15 0 * * 1"}, Jobs{Lottery: lottery}, NewRedisLocker(client, ""))
	require.NoError(t, err)
	s.WithClock(clock)

	ended, err := week.Previous(week.ID(testNow))
	require.NoError(t, err)
	ctx := context.Background()

	result, err := s.Run(ctx, "snapshot")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	p, err := store.Pools().Get(ctx, ended)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.PoolStatusSnapshotTaken, p.Status)

	result, err = s.Run(ctx, "snapshot")
	require.NoError(t, err)
	assert.Equal(t, "skipped", result)

	// another replica holds the draw
	require.NoError(t, client.Set(ctx, "cron:lottery-draw", "other", time.Minute).Err())
	result, err = s.Run(ctx, "lottery-draw")
	require.NoError(t, err)
	assert.Equal(t, "locked", result)

	_, err = s.Run(ctx, "burn")
	assert.Error(t, err)
}
