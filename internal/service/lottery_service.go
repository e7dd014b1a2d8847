package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"
	"trivia_backend/internal/game"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/lottery"
	"trivia_backend/internal/notify"
	"trivia_backend/internal/repository"
	"trivia_backend/internal/week"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// how long a cron step owns a pool before another run may take it over
	claimLease = 15 * time.Minute

	forfeitAttempts = 3

	// how many weeks ahead a rollover may be pushed when the next pool is already closed
	maxRolloverHops = 4
)

// LotteryService runs the weekly snapshot and draw.
type LotteryService struct {
	store    repository.Store
	ledger   *ledger
	tickets  *TicketService
	bus      *event.Bus
	chain    Chain
	notifier notify.Notifier
	now      func() time.Time
	log      *slog.Logger
}

// NewLotteryService creates the service. ch may be nil, the draw then seeds from local entropy.
func NewLotteryService(store repository.Store, tickets *TicketService, bus *event.Bus, ch Chain, n notify.Notifier) *LotteryService {
	if n == nil {
		n = notify.NewDiscord("")
	}
	s := &LotteryService{
		store:    store,
		tickets:  tickets,
		bus:      bus,
		chain:    ch,
		notifier: n,
		now:      time.Now,
		log:      logger.Component("lottery"),
	}
	s.ledger = &ledger{store: store, tickets: tickets, now: func() time.Time { return s.now() }}
	return s
}

func (s *LotteryService) WithClock(now func() time.Time) *LotteryService {
	s.now = now
	return s
}

// claimPool moves the pool into a running step. done is the status reached when the step completed.
func claimPool(ctx context.Context, pools repository.PoolRepository, weekID string, from, running, done domain.PoolStatus, now time.Time) (*domain.WeeklyPool, error) {
	p, err := pools.Claim(ctx, weekID, from, running, claimLease, now)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrConditionFailed) {
		return nil, err
	}

	cur, err := pools.Get(ctx, weekID)
	if err != nil {
		return nil, err
	}
	switch {
	case cur == nil:
		return nil, ErrPoolNotFound
	case cur.Status.Reached(done):
		return nil, ErrAlreadyDone
	case cur.Status == running:
		return nil, ErrInProgress
	default:
		return nil, fmt.Errorf("%w: pool is %s", missingStep(from), cur.Status)
	}
}

// missingStep maps a failed claim to the error of the step that has not run yet.
func missingStep(from domain.PoolStatus) error {
	switch from {
	case domain.PoolStatusSnapshotTaken:
		return ErrSnapshotNotTaken
	case domain.PoolStatusDrawn:
		return ErrNotDrawn
	default:
		return ErrWeekNotEnded
	}
}

func (s *LotteryService) alert(ctx context.Context, title string, weekID string, err error) {
	m := notify.Message{
		Title:       title,
		Description: err.Error(),
		Color:       notify.ColorError,
		Fields:      []notify.Field{{Name: "Week", Value: weekID, Inline: true}},
	}
	if nerr := s.notifier.Notify(ctx, m); nerr != nil {
		s.log.Warn("discord notify failed", "error", nerr)
	}
}

type SnapshotResult struct {
	WeekID       string `json:"weekId"`
	FinalPool    int64  `json:"finalPool"`
	TotalTickets int64  `json:"totalTickets"`
	Participants int    `json:"totalParticipants"`
	Forfeited    int    `json:"forfeitedGames"`
}

// Snapshot closes the week: forfeits games still running, freezes the ticket totals and
// assigns ticket number ranges.
func (s *LotteryService) Snapshot(ctx context.Context, weekID string) (*SnapshotResult, error) {
	if _, err := week.Start(weekID); err != nil {
		return nil, ErrInvalidWeekID
	}
	ended, _ := week.Ended(weekID, s.now())
	if !ended {
		return nil, ErrWeekNotEnded
	}

	if _, err := s.store.Pools().Ensure(ctx, weekID); err != nil {
		return nil, err
	}
	if _, err := claimPool(ctx, s.store.Pools(), weekID,
		domain.PoolStatusOpen, domain.PoolStatusSnapshotting, domain.PoolStatusSnapshotTaken, s.now()); err != nil {
		return nil, err
	}

	res, err := s.snapshot(ctx, weekID)
	if err != nil {
		s.log.Error("snapshot failed", "week_id", weekID, "error", err)
		if rerr := s.store.Pools().Release(ctx, weekID, domain.PoolStatusSnapshotting, domain.PoolStatusOpen, err.Error()); rerr != nil {
			s.log.Error("release snapshot claim", "week_id", weekID, "error", rerr)
		}
		s.alert(ctx, "Lottery snapshot failed", weekID, err)
		return nil, err
	}

	s.log.Info("snapshot taken", "week_id", weekID, "final_pool", res.FinalPool,
		"total_tickets", res.TotalTickets, "participants", res.Participants, "forfeited", res.Forfeited)
	return res, nil
}

func (s *LotteryService) snapshot(ctx context.Context, weekID string) (*SnapshotResult, error) {
	active, err := s.store.Games().ListActiveByWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	forfeited := 0
	for _, g := range active {
		ok, err := s.forfeit(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("forfeit game %s: %w", g.GameID, err)
		}
		if ok {
			forfeited++
		}
	}

	tickets, err := s.tickets.Recompute(ctx, weekID)
	if err != nil {
		return nil, err
	}
	ranges, total := lottery.AssignRanges(tickets)
	if len(ranges) > 0 {
		if err := s.store.Tickets().SetRanges(ctx, weekID, ranges); err != nil {
			return nil, fmt.Errorf("set ranges: %w", err)
		}
	}

	p, err := s.store.Pools().Get(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPoolNotFound
	}

	res := &SnapshotResult{
		WeekID:       weekID,
		FinalPool:    p.LotteryPool + p.RolloverIn,
		TotalTickets: total,
		Participants: len(tickets),
		Forfeited:    forfeited,
	}
	if err := s.store.Pools().CompleteSnapshot(ctx, weekID, res.FinalPool, res.TotalTickets, res.Participants); err != nil {
		return nil, fmt.Errorf("complete snapshot: %w", err)
	}
	return res, nil
}

// forfeit settles an active game as a loss through the same path as a wrong answer.
// A concurrent answer bumps the version, so the game is reloaded and tried again.
func (s *LotteryService) forfeit(ctx context.Context, g *domain.Game) (bool, error) {
	for attempt := 0; attempt < forfeitAttempts; attempt++ {
		if attempt > 0 {
			fresh, err := s.store.Games().Get(ctx, g.GameID)
			if err != nil {
				return false, err
			}
			if fresh == nil || !fresh.IsActive() {
				return false, nil
			}
			g = fresh
		}

		var settled *domain.Game
		err := s.store.WithTx(ctx, func(ctx context.Context) error {
			c := cloneGame(g)
			if err := game.Forfeit(c, s.now()); err != nil {
				return err
			}
			if err := s.store.Games().Update(ctx, c); err != nil {
				return err
			}
			if _, err := s.ledger.settleLoss(ctx, c); err != nil {
				return err
			}
			settled = c
			return nil
		})
		switch {
		case err == nil:
			s.bus.Publish(ctx, domain.EventGameSettled{Game: *settled, Net: -settled.BetAmount})
			s.log.Info("game forfeited", "fid", g.FID, "game_id", g.GameID, "week_id", g.WeekID)
			return true, nil
		case errors.Is(err, game.ErrGameNotActive):
			return false, nil
		case errors.Is(err, repository.ErrConflict):
			continue
		default:
			return false, err
		}
	}
	return false, ErrConcurrentUpdate
}

type DrawResult struct {
	WeekID   string             `json:"weekId"`
	Seed     string             `json:"seed"`
	Outcome  domain.DrawOutcome `json:"outcome"`
	Paid     int                `json:"paid"`
	Skipped  int                `json:"alreadyPaid"`
	Rollover string             `json:"rolloverWeekId,omitempty"`
}

// Draw picks the winners of a snapshotted week and pays every prize exactly once.
// A re-run after a failure reuses the stored seed and skips prizes already paid.
func (s *LotteryService) Draw(ctx context.Context, weekID string) (*DrawResult, error) {
	if _, err := week.Start(weekID); err != nil {
		return nil, ErrInvalidWeekID
	}

	p, err := s.store.Pools().Get(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Status.Reached(domain.PoolStatusSnapshotTaken) {
		return nil, ErrSnapshotNotTaken
	}

	p, err = claimPool(ctx, s.store.Pools(), weekID,
		domain.PoolStatusSnapshotTaken, domain.PoolStatusDrawing, domain.PoolStatusDrawn, s.now())
	if err != nil {
		return nil, err
	}

	res, err := s.draw(ctx, p)
	if err != nil {
		s.log.Error("draw failed", "week_id", weekID, "error", err)
		if rerr := s.store.Pools().Release(ctx, weekID, domain.PoolStatusDrawing, domain.PoolStatusSnapshotTaken, err.Error()); rerr != nil {
			s.log.Error("release draw claim", "week_id", weekID, "error", rerr)
		}
		s.alert(ctx, "Lottery draw failed", weekID, err)
		return nil, err
	}

	s.bus.Publish(ctx, domain.EventDrawCompleted{WeekID: weekID, Outcome: res.Outcome})
	s.log.Info("lottery drawn", "week_id", weekID, "winners", len(res.Outcome.Winners),
		"consolation_holders", res.Outcome.ConsolationHolders, "rollover", res.Outcome.RolloverOut, "paid", res.Paid)
	return res, nil
}

func (s *LotteryService) draw(ctx context.Context, p *domain.WeeklyPool) (*DrawResult, error) {
	seed, err := s.seed(ctx, p)
	if err != nil {
		return nil, err
	}

	tickets, err := s.store.Tickets().ListByWeek(ctx, p.WeekID)
	if err != nil {
		return nil, err
	}
	plan, err := lottery.BuildPlan(p.WeekID, p.FinalPool, seed, lottery.RangesFromTickets(tickets))
	if err != nil {
		return nil, err
	}

	res := &DrawResult{WeekID: p.WeekID, Seed: hexutil.Encode(seed[:])}

	for i := range plan.Winners {
		w := &plan.Winners[i]
		if u, err := s.store.Users().Get(ctx, w.FID); err == nil && u != nil {
			w.Username = u.Username
		}
		if w.Amount <= 0 {
			continue
		}
		paid, err := s.ledger.payPrize(ctx, domain.LotteryPayout{
			WeekID:       p.WeekID,
			Position:     w.Position,
			FID:          w.FID,
			Tier:         w.Tier,
			TicketNumber: w.TicketNumber,
			Amount:       w.Amount,
		}, domain.TxLotteryWin)
		if err != nil {
			return nil, fmt.Errorf("pay position %d: %w", w.Position, err)
		}
		res.count(paid)
	}

	for _, c := range plan.Consolation {
		paid, err := s.ledger.payPrize(ctx, c, domain.TxLotteryConsolation)
		if err != nil {
			return nil, fmt.Errorf("pay consolation fid=%d: %w", c.FID, err)
		}
		res.count(paid)
	}

	if plan.Rollover > 0 {
		if res.Rollover, err = s.rollover(ctx, p.WeekID, plan.Rollover); err != nil {
			return nil, fmt.Errorf("rollover: %w", err)
		}
	}

	res.Outcome = domain.DrawOutcome{
		Winners:              plan.Winners,
		ConsolationPerHolder: plan.ConsolationPerHolder,
		ConsolationHolders:   len(plan.Consolation),
		RolloverOut:          plan.Rollover,
	}
	if res.Outcome.Winners == nil {
		res.Outcome.Winners = []domain.Winner{}
	}
	if err := s.store.Pools().CompleteDraw(ctx, p.WeekID, res.Outcome); err != nil {
		return nil, fmt.Errorf("complete draw: %w", err)
	}
	return res, nil
}

func (r *DrawResult) count(paid bool) {
	if paid {
		r.Paid++
	} else {
		r.Skipped++
	}
}

// seed returns the stored draw seed, or derives and stores a new one.
// Without a chain gateway the block hash is replaced by local randomness.
func (s *LotteryService) seed(ctx context.Context, p *domain.WeeklyPool) ([32]byte, error) {
	var seed [32]byte
	if p.DrawSeed != "" {
		b, err := hexutil.Decode(p.DrawSeed)
		if err != nil || len(b) != len(seed) {
			return seed, fmt.Errorf("stored draw seed is invalid: %q", p.DrawSeed)
		}
		copy(seed[:], b)
		return seed, nil
	}

	var blockHash []byte
	if s.chain != nil {
		h, err := s.chain.LatestBlockHash(ctx)
		if err != nil {
			return seed, fmt.Errorf("latest block hash: %w", err)
		}
		blockHash = h
	} else {
		blockHash = make([]byte, 32)
		if _, err := rand.Read(blockHash); err != nil {
			return seed, err
		}
		s.log.Warn("chain not configured, seeding draw from local entropy", "week_id", p.WeekID)
	}

	seed = lottery.Seed(p.WeekID, blockHash, s.now())
	if err := s.store.Pools().SetDrawSeed(ctx, p.WeekID, hexutil.Encode(seed[:])); err != nil {
		return seed, fmt.Errorf("store draw seed: %w", err)
	}
	return seed, nil
}

// rollover moves the undistributed amount into the first following week that is still open.
// The rollover marker makes it happen once per drawn week.
func (s *LotteryService) rollover(ctx context.Context, weekID string, amount int64) (string, error) {
	target, err := week.Next(weekID)
	if err != nil {
		return "", err
	}
	for hop := 0; hop < maxRolloverHops; hop++ {
		p, err := s.store.Pools().Get(ctx, target)
		if err != nil {
			return "", err
		}
		if p == nil || p.Status == domain.PoolStatusOpen {
			break
		}
		if target, err = week.Next(target); err != nil {
			return "", err
		}
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Payouts().Insert(ctx, &domain.LotteryPayout{
			WeekID:    weekID,
			Position:  domain.PayoutRollover,
			Amount:    amount,
			CreatedAt: s.now(),
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errAlreadyPaid
			}
			return err
		}
		return s.store.Pools().Increment(ctx, target, domain.PoolDelta{RolloverIn: amount})
	})
	if errors.Is(err, errAlreadyPaid) {
		return target, nil
	}
	if err != nil {
		return "", err
	}
	s.log.Info("lottery rollover", "from_week", weekID, "to_week", target, "amount", amount)
	return target, nil
}
