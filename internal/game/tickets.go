package game

import (
	"math"
	"sort"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/week"
)

const (
	WagerPerTicket   = 10_000
	TicketsPerGame   = 0.5
	LossBonusTickets = 1.0
)

// CalculateBaseTickets returns floor(wagered/10000) + 0.5 per game.
func CalculateBaseTickets(wagered int64, games int64) float64 {
	return betTickets(wagered) + gameTickets(games)
}

func betTickets(wagered int64) float64 {
	if wagered <= 0 {
		return 0
	}
	return float64(wagered / WagerPerTicket)
}

func gameTickets(games int64) float64 {
	if games <= 0 {
		return 0
	}
	return TicketsPerGame * float64(games)
}

// CalculateConsecutiveDays returns the longest run of consecutive calendar days.
// Input may be unordered and contain duplicates; unparsable days are ignored.
func CalculateConsecutiveDays(days []string) int {
	seen := make(map[int64]struct{}, len(days))
	for _, d := range days {
		t, err := week.ParseDay(d)
		if err != nil {
			continue
		}
		seen[t.Unix()/86400] = struct{}{}
	}
	if len(seen) == 0 {
		return 0
	}

	ordinals := make([]int64, 0, len(seen))
	for n := range seen {
		ordinals = append(ordinals, n)
	}
	sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] < ordinals[j] })

	longest, run := 1, 1
	for i := 1; i < len(ordinals); i++ {
		if ordinals[i] == ordinals[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// StreakMultiplier: 1.0 below 3 days, 1.1 from 3 days, 1.5 from 7 days.
func StreakMultiplier(consecutiveDays int) float64 {
	switch {
	case consecutiveDays >= 7:
		return 1.5
	case consecutiveDays >= 3:
		return 1.1
	default:
		return 1.0
	}
}

// ApplyTicketTotals recomputes the derived ticket fields from the stored counters.
func ApplyTicketTotals(t *domain.LotteryTicket) {
	t.BetBasedTickets = betTickets(t.TotalWagered)
	t.GameBasedTickets = gameTickets(t.GamesPlayed)
	t.ConsecutiveDays = CalculateConsecutiveDays(t.DaysPlayed)
	t.StreakMultiplier = StreakMultiplier(t.ConsecutiveDays)

	total := (t.BetBasedTickets+t.GameBasedTickets)*t.StreakMultiplier + t.BonusTickets
	// keep 1.1x products like 3.3000000000000003 stable
	t.TotalTickets = math.Round(total*1e6) / 1e6
}

// WholeTickets is the number of drawable ticket numbers.
func WholeTickets(total float64) int64 {
	if total <= 0 {
		return 0
	}
	return int64(math.Floor(total))
}
