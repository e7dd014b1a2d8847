package service

import (
	"context"
	"fmt"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/game"
	"trivia_backend/internal/repository"
	"trivia_backend/internal/week"
)

// TicketService keeps the weekly lottery tickets and exposes the pool read side.
type TicketService struct {
	store repository.Store
}

func NewTicketService(store repository.Store) *TicketService {
	return &TicketService{store: store}
}

// Accrue counts a settled game towards the user's tickets of the game's week and
// recomputes the derived totals from the stored counters.
func (s *TicketService) Accrue(ctx context.Context, g *domain.Game, bonus float64) (*domain.LotteryTicket, error) {
	t, err := s.store.Tickets().RecordPlay(ctx, g.WeekID, g.FID, g.BetAmount, week.Day(g.StartedAt), bonus)
	if err != nil {
		return nil, fmt.Errorf("record play: %w", err)
	}
	game.ApplyTicketTotals(t)
	if err := s.store.Tickets().SetTotals(ctx, t); err != nil {
		return nil, fmt.Errorf("set ticket totals: %w", err)
	}
	return t, nil
}

// Recompute refreshes the totals of every ticket document of the week.
func (s *TicketService) Recompute(ctx context.Context, weekID string) ([]*domain.LotteryTicket, error) {
	tickets, err := s.store.Tickets().ListByWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		game.ApplyTicketTotals(t)
		if err := s.store.Tickets().SetTotals(ctx, t); err != nil {
			return nil, fmt.Errorf("set ticket totals fid=%d: %w", t.FID, err)
		}
	}
	return tickets, nil
}

// Get returns the user's tickets for the week, or an empty document.
func (s *TicketService) Get(ctx context.Context, weekID string, fid int64) (*domain.LotteryTicket, error) {
	t, err := s.store.Tickets().Get(ctx, weekID, fid)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = &domain.LotteryTicket{WeekID: weekID, FID: fid, StreakMultiplier: 1, DaysPlayed: []string{}}
	}
	return t, nil
}

// PoolView is the public state of a weekly pool.
type PoolView struct {
	*domain.WeeklyPool
	CurrentPrizePool int64                   `json:"currentPrizePool"`
	Payouts          []*domain.LotteryPayout `json:"payouts,omitempty"`
}

// Pool returns the pool of weekID. Weeks without activity are reported as an empty open pool.
func (s *TicketService) Pool(ctx context.Context, weekID string) (*PoolView, error) {
	if _, err := week.Start(weekID); err != nil {
		return nil, ErrInvalidWeekID
	}

	p, err := s.store.Pools().Get(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &domain.WeeklyPool{WeekID: weekID, Status: domain.PoolStatusOpen, Winners: []domain.Winner{}}
	}

	v := &PoolView{WeeklyPool: p, CurrentPrizePool: p.LotteryPool + p.RolloverIn}
	if p.SnapshotTaken {
		v.CurrentPrizePool = p.FinalPool
	}
	if p.DrawCompleted {
		if v.Payouts, err = s.store.Payouts().ListByWeek(ctx, weekID); err != nil {
			return nil, err
		}
	}
	return v, nil
}
