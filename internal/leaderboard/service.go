// Package leaderboard ranks users by their weekly bet mode net winnings.
package leaderboard

import (
	"context"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"
)

type Config struct {
	EventBus *event.Bus
	Store    Store
}

type Service struct {
	store Store
}

// NewService subscribes the leaderboard to settled games.
func NewService(c Config) *Service {
	s := &Service{store: c.Store}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameGameSettled, func(ctx context.Context, e event.Event) error {
			return s.RecordGame(ctx, e.(domain.EventGameSettled))
		})
	}
	return s
}

func (s *Service) RecordGame(ctx context.Context, e domain.EventGameSettled) error {
	return s.store.Add(ctx, e.Game.WeekID, e.Game.FID, e.Net)
}

type Board struct {
	WeekID  string  `json:"weekId"`
	Entries []Entry `json:"entries"`
	Me      *Entry  `json:"me,omitempty"`
}

// Get returns the top entries and, when fid is non-zero, the caller's own position.
func (s *Service) Get(ctx context.Context, weekID string, limit int, fid int64) (*Board, error) {
	entries, err := s.store.Top(ctx, weekID, limit)
	if err != nil {
		return nil, err
	}
	b := &Board{WeekID: weekID, Entries: entries}
	if fid != 0 {
		if b.Me, err = s.store.Get(ctx, weekID, fid); err != nil {
			return nil, err
		}
	}
	return b, nil
}
