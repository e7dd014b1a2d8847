// Package lottery implements the weekly ticket snapshot, the seeded draw and prize tiers.
package lottery

import (
	"sort"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/game"
)

// AssignRanges gives every ticket holder a contiguous half-open range of ticket numbers.
// Holders are ordered by fid so the assignment is reproducible. Users with less than one
// whole ticket get an empty range. Returns the ranges in order and the total ticket count.
func AssignRanges(tickets []*domain.LotteryTicket) ([]domain.TicketRange, int64) {
	sorted := make([]*domain.LotteryTicket, len(tickets))
	copy(sorted, tickets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FID < sorted[j].FID })

	ranges := make([]domain.TicketRange, 0, len(sorted))
	var cursor int64
	for _, t := range sorted {
		n := game.WholeTickets(t.TotalTickets)
		r := domain.TicketRange{FID: t.FID, Start: cursor, End: cursor + n}
		t.TicketRangeStart = r.Start
		t.TicketRangeEnd = r.End
		cursor += n
		ranges = append(ranges, r)
	}
	return ranges, cursor
}

// RangesFromTickets rebuilds the snapshot ranges stored on ticket documents,
// skipping empty ones, ordered by range start.
func RangesFromTickets(tickets []*domain.LotteryTicket) []domain.TicketRange {
	ranges := make([]domain.TicketRange, 0, len(tickets))
	for _, t := range tickets {
		if t.TicketRangeEnd > t.TicketRangeStart {
			ranges = append(ranges, domain.TicketRange{FID: t.FID, Start: t.TicketRangeStart, End: t.TicketRangeEnd})
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	return ranges
}

// FindOwner maps a ticket number to its holder by binary search over sorted, non-empty ranges.
func FindOwner(ranges []domain.TicketRange, n int64) (int64, bool) {
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].End > n })
	if i == len(ranges) || n < ranges[i].Start {
		return 0, false
	}
	return ranges[i].FID, true
}

// Holders returns the fids owning at least one ticket number.
func Holders(ranges []domain.TicketRange) []int64 {
	out := make([]int64, 0, len(ranges))
	for _, r := range ranges {
		if r.Size() > 0 {
			out = append(out, r.FID)
		}
	}
	return out
}
