package lottery

import (
	"trivia_backend/internal/domain"
)

// Prize tiers in basis points of the final pool, by drawn position.
//
//	pos 0      tier 1  25%
//	pos 1-2    tier 2  10% each
//	pos 3-5    tier 3   6% each
//	pos 6-10   tier 4   3% each
//	pos 11-20  tier 5 1.2% each
//	pos 21-30  tier 6   1% each
var tiers = []struct {
	tier  int
	slots int
	bps   int64
}{
	{1, 1, 2500},
	{2, 2, 1000},
	{3, 3, 600},
	{4, 5, 300},
	{5, 10, 120},
	{6, 10, 100},
}

// Tier returns the tier number and share in basis points of a position.
func Tier(position int) (int, int64) {
	p := position
	for _, t := range tiers {
		if p < t.slots {
			return t.tier, t.bps
		}
		p -= t.slots
	}
	return 0, 0
}

// Plan is the full set of credits produced by a draw.
type Plan struct {
	Winners              []domain.Winner
	Consolation          []domain.LotteryPayout
	ConsolationPerHolder int64
	Rollover             int64
}

// BuildPlan draws the winners and splits the final pool.
// Whatever the tiers don't pay is shared evenly by holders that won nothing;
// the flooring remainder, or everything when nobody holds a ticket, rolls over.
func BuildPlan(weekID string, finalPool int64, seed [32]byte, ranges []domain.TicketRange) (*Plan, error) {
	var total int64
	for _, r := range ranges {
		if r.End > total {
			total = r.End
		}
	}

	plan := &Plan{}
	if total == 0 || finalPool <= 0 {
		plan.Rollover = max(finalPool, 0)
		return plan, nil
	}

	numbers, err := DrawNumbers(seed, total, Count(total))
	if err != nil {
		return nil, err
	}

	won := make(map[int64]struct{}, len(numbers))
	var paid int64
	for pos, n := range numbers {
		fid, ok := FindOwner(ranges, n)
		if !ok {
			continue
		}
		tier, bps := Tier(pos)
		amount := finalPool * bps / 10_000
		plan.Winners = append(plan.Winners, domain.Winner{
			Position:     pos,
			Tier:         tier,
			TicketNumber: n,
			FID:          fid,
			Amount:       amount,
		})
		won[fid] = struct{}{}
		paid += amount
	}

	remaining := finalPool - paid
	var losers []int64
	for _, fid := range Holders(ranges) {
		if _, ok := won[fid]; !ok {
			losers = append(losers, fid)
		}
	}

	if len(losers) == 0 || remaining < int64(len(losers)) {
		plan.Rollover = remaining
		return plan, nil
	}

	per := remaining / int64(len(losers))
	plan.ConsolationPerHolder = per
	for _, fid := range losers {
		plan.Consolation = append(plan.Consolation, domain.LotteryPayout{
			WeekID:   weekID,
			Position: domain.PayoutConsolation,
			FID:      fid,
			Amount:   per,
		})
	}
	plan.Rollover = remaining - per*int64(len(losers))
	return plan, nil
}
