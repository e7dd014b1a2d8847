package service

import (
	"testing"

	"trivia_backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawAndBurn(t *testing.T) {
	env := newTestEnv(t)
	env.playLosses(t, 100_000, 1, 2)

	_, err := DrawAndBurn(env.ctx, env.lottery, env.burns, env.weekID)
	assert.ErrorIs(t, err, ErrSnapshotNotTaken)

	env.snapshot(t)
	env.chain.burnErr = assert.AnError

	res, err := DrawAndBurn(env.ctx, env.lottery, env.burns, env.weekID)
	require.Error(t, err)
	require.NotNil(t, res.Draw)
	assert.Nil(t, res.Burn)
	assert.True(t, res.Partial())

	// the retry skips the finished draw and only burns
	env.chain.burnErr = nil
	res, err = DrawAndBurn(env.ctx, env.lottery, env.burns, env.weekID)
	require.NoError(t, err)
	assert.True(t, res.DrawSkipped)
	require.NotNil(t, res.Burn)
	assert.Equal(t, int64(120_000), res.Burn.Amount)
	assert.False(t, res.Partial())

	p, err := env.store.Pools().Get(env.ctx, env.weekID)
	require.NoError(t, err)
	assert.Equal(t, domain.PoolStatusBurned, p.Status)

	_, err = DrawAndBurn(env.ctx, env.lottery, env.burns, env.weekID)
	assert.ErrorIs(t, err, ErrAlreadyDone)
}
