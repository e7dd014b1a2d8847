package lottery

import (
	"testing"
	"time"

	"trivia_backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickets(totals map[int64]float64) []*domain.LotteryTicket {
	out := make([]*domain.LotteryTicket, 0, len(totals))
	for fid, total := range totals {
		out = append(out, &domain.LotteryTicket{WeekID: "2025-W03", FID: fid, TotalTickets: total})
	}
	return out
}

func TestAssignRangesPartitionsTicketSpace(t *testing.T) {
	ts := tickets(map[int64]float64{
		30: 2.5,
		10: 4,
		20: 0.5,
		40: 1.1,
		50: 17.85,
	})

	ranges, total := AssignRanges(ts)
	require.Len(t, ranges, 5)
	assert.Equal(t, int64(4+2+1+17), total)

	var cursor int64
	for i, r := range ranges {
		if i > 0 {
			assert.Less(t, ranges[i-1].FID, r.FID, "ordered by fid")
		}
		assert.Equal(t, cursor, r.Start, "no gaps or overlaps")
		assert.GreaterOrEqual(t, r.End, r.Start)
		cursor = r.End
	}
	assert.Equal(t, total, cursor)

	// 0.5 tickets get an empty range
	for _, tk := range ts {
		if tk.FID == 20 {
			assert.Equal(t, tk.TicketRangeStart, tk.TicketRangeEnd)
		}
	}

	// every number has exactly one owner
	nonEmpty := RangesFromTickets(ts)
	for n := int64(0); n < total; n++ {
		_, ok := FindOwner(nonEmpty, n)
		assert.True(t, ok, "ticket %d", n)
	}
	_, ok := FindOwner(nonEmpty, total)
	assert.False(t, ok)
}

func TestFindOwner(t *testing.T) {
	ranges := []domain.TicketRange{
		{FID: 1, Start: 0, End: 3},
		{FID: 2, Start: 3, End: 4},
		{FID: 3, Start: 4, End: 10},
	}

	cases := map[int64]int64{0: 1, 2: 1, 3: 2, 4: 3, 9: 3}
	for n, want := range cases {
		got, ok := FindOwner(ranges, n)
		require.True(t, ok)
		assert.Equal(t, want, got, "ticket %d", n)
	}

	_, ok := FindOwner(ranges, 10)
	assert.False(t, ok)
	_, ok = FindOwner(ranges, -1)
	assert.False(t, ok)
}

func TestDrawNumbersDistinctAndInRange(t *testing.T) {
	seed := Seed("2025-W03", []byte{0xde, 0xad, 0xbe, 0xef}, time.Date(2025, 1, 20, 0, 10, 0, 0, time.UTC))

	for _, total := range []int64{31, 32, 100, 5_000, 1_000_000} {
		numbers, err := DrawNumbers(seed, total, Count(total))
		require.NoError(t, err)
		require.Len(t, numbers, WinnerCount, "total=%d", total)

		seen := map[int64]bool{}
		for _, n := range numbers {
			assert.GreaterOrEqual(t, n, int64(0))
			assert.Less(t, n, total)
			assert.False(t, seen[n], "duplicate %d", n)
			seen[n] = true
		}
	}
}

func TestDrawNumbersSmallPool(t *testing.T) {
	seed := Seed("2025-W03", nil, time.Unix(0, 0))

	numbers, err := DrawNumbers(seed, 5, Count(5))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{0, 1, 2, 3, 4}, numbers)

	_, err = DrawNumbers(seed, 0, 0)
	assert.ErrorIs(t, err, ErrNoTickets)
	_, err = DrawNumbers(seed, 3, 4)
	assert.ErrorIs(t, err, ErrInvalidDrawCount)
}

func TestDrawIsDeterministicForSeed(t *testing.T) {
	now := time.Date(2025, 1, 20, 0, 10, 0, 0, time.UTC)
	a, err := DrawNumbers(Seed("2025-W03", []byte{1}, now), 1000, WinnerCount)
	require.NoError(t, err)
	b, err := DrawNumbers(Seed("2025-W03", []byte{1}, now), 1000, WinnerCount)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DrawNumbers(Seed("2025-W03", []byte{2}, now), 1000, WinnerCount)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestTier(t *testing.T) {
	cases := []struct {
		pos  int
		tier int
		bps  int64
	}{
		{0, 1, 2500}, {1, 2, 1000}, {2, 2, 1000}, {3, 3, 600}, {5, 3, 600},
		{6, 4, 300}, {10, 4, 300}, {11, 5, 120}, {20, 5, 120}, {21, 6, 100}, {30, 6, 100}, {31, 0, 0},
	}
	for _, c := range cases {
		tier, bps := Tier(c.pos)
		assert.Equal(t, c.tier, tier, "pos %d", c.pos)
		assert.Equal(t, c.bps, bps, "pos %d", c.pos)
	}
}

func TestBuildPlanNeverPaysMoreThanPool(t *testing.T) {
	ts := make([]*domain.LotteryTicket, 0, 60)
	for fid := int64(1); fid <= 60; fid++ {
		ts = append(ts, &domain.LotteryTicket{FID: fid, TotalTickets: float64(fid%7 + 1)})
	}
	ranges, _ := AssignRanges(ts)
	seed := Seed("2025-W03", []byte{7}, time.Unix(1_700_000_000, 0))

	const pool = 1_234_567
	plan, err := BuildPlan("2025-W03", pool, seed, ranges)
	require.NoError(t, err)
	require.Len(t, plan.Winners, WinnerCount)

	var sum int64
	positions := map[int]bool{}
	for _, w := range plan.Winners {
		sum += w.Amount
		positions[w.Position] = true
	}
	for _, c := range plan.Consolation {
		sum += c.Amount
		assert.Equal(t, plan.ConsolationPerHolder, c.Amount)
	}
	assert.Len(t, positions, WinnerCount)
	assert.Equal(t, int64(pool), sum+plan.Rollover)
	assert.Equal(t, int64(pool)*2500/10_000, plan.Winners[0].Amount)
}

func TestBuildPlanConsolationForNonWinners(t *testing.T) {
	// two holders and 3 tickets: both win a position, the undrawn share is dust
	ranges := []domain.TicketRange{{FID: 1, Start: 0, End: 2}, {FID: 2, Start: 2, End: 3}}
	plan, err := BuildPlan("2025-W03", 10_000, Seed("w", nil, time.Unix(1, 0)), ranges)
	require.NoError(t, err)
	require.Len(t, plan.Winners, 3)
	assert.Empty(t, plan.Consolation)

	var paid int64
	for _, w := range plan.Winners {
		paid += w.Amount
	}
	assert.Equal(t, int64(2500+1000+1000), paid)
	assert.Equal(t, int64(10_000-4500), plan.Rollover)
}

func TestBuildPlanRollsOverWithoutTickets(t *testing.T) {
	plan, err := BuildPlan("2025-W03", 5_000, [32]byte{}, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Winners)
	assert.Equal(t, int64(5_000), plan.Rollover)
}
