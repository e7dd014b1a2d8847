package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"
	"trivia_backend/internal/game"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/metrics"
	"trivia_backend/internal/repository"
	"trivia_backend/internal/week"

	"github.com/google/uuid"
)

// BetConfig holds the bet limits and the weekly betting window.
type BetConfig struct {
	MinBet int64
	MaxBet int64
	Window week.Window
}

// BetService runs bet mode sessions: locking the bet, answering, cash-out and settlement.
type BetService struct {
	store   repository.Store
	ledger  *ledger
	tickets *TicketService
	bus     *event.Bus
	cfg     BetConfig
	now     func() time.Time
	log     *slog.Logger
}

func NewBetService(store repository.Store, tickets *TicketService, bus *event.Bus, cfg BetConfig) *BetService {
	s := &BetService{
		store:   store,
		tickets: tickets,
		bus:     bus,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.Component("bet"),
	}
	s.ledger = &ledger{store: store, tickets: tickets, now: func() time.Time { return s.now() }}
	return s
}

// WithClock replaces the time source, used by tests.
func (s *BetService) WithClock(now func() time.Time) *BetService {
	s.now = now
	return s
}

// Balances is the spendable and locked part of an account.
type Balances struct {
	Balance int64 `json:"qtBalance"`
	Locked  int64 `json:"qtLockedBalance"`
}

func balancesOf(a *domain.Account) Balances {
	if a == nil {
		return Balances{}
	}
	return Balances{Balance: a.QTBalance, Locked: a.QTLockedBalance}
}

// GameView is a game as returned to its player. Answers of unanswered questions are never included.
type GameView struct {
	GameID          string            `json:"gameId"`
	BetAmount       int64             `json:"betAmount"`
	Status          domain.GameStatus `json:"status"`
	CurrentQuestion int               `json:"currentQuestion"`
	WeekID          string            `json:"weekId"`
	Multiplier      float64           `json:"multiplier"`
	Payout          int64             `json:"payout"`
	CanCashOut      bool              `json:"canCashOut"`
	PotentialPayout int64             `json:"potentialPayout"`
	Forfeited       bool              `json:"forfeited,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
}

func viewGame(g *domain.Game) GameView {
	return GameView{
		GameID:          g.GameID,
		BetAmount:       g.BetAmount,
		Status:          g.Status,
		CurrentQuestion: g.CurrentQuestion,
		WeekID:          g.WeekID,
		Multiplier:      g.Multiplier,
		Payout:          g.Payout,
		CanCashOut:      game.CanCashOut(g),
		PotentialPayout: game.PotentialPayout(g),
		Forfeited:       g.Forfeited,
		StartedAt:       g.StartedAt,
		CompletedAt:     g.CompletedAt,
	}
}

type StartResult struct {
	Game        GameView             `json:"game"`
	Question    *game.PublicQuestion `json:"question"`
	Multipliers []map[string]any     `json:"multipliers"`
	Balances    Balances             `json:"balances"`
}

// Start locks the bet and creates a new game with ten questions.
// The user needs at least twice the bet available.
func (s *BetService) Start(ctx context.Context, fid int64, bet int64) (*StartResult, error) {
	switch {
	case bet <= 0:
		return nil, ErrInvalidBet
	case bet < s.cfg.MinBet:
		return nil, ErrBetTooLow
	case s.cfg.MaxBet > 0 && bet > s.cfg.MaxBet:
		return nil, ErrBetTooHigh
	}

	now := s.now()
	if !s.cfg.Window.IsOpen(now) {
		return nil, ErrBetWindowClosed
	}

	active, err := s.store.Games().GetActiveByFID(ctx, fid)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrActiveGameExists
	}

	acct, err := s.store.Accounts().GetOrCreate(ctx, fid)
	if err != nil {
		return nil, err
	}
	if acct.QTBalance < 2*bet {
		return nil, ErrInsufficientBalance
	}

	questions, err := s.pickQuestions(ctx)
	if err != nil {
		return nil, err
	}

	g := &domain.Game{
		GameID:          uuid.NewString(),
		FID:             fid,
		BetAmount:       bet,
		Status:          domain.GameStatusActive,
		CurrentQuestion: 1,
		Questions:       questions,
		WeekID:          week.ID(now),
		StartedAt:       now,
	}

	var after *domain.Account
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.store.Accounts().Apply(ctx, fid, domain.AccountDelta{Balance: -bet, Locked: bet, Wagered: bet})
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return ErrInsufficientBalance
			}
			return err
		}
		// the 2x rule is checked again against the committed balance
		if a.QTBalance < bet {
			return ErrInsufficientBalance
		}

		created := cloneGame(g)
		if err := s.store.Games().Create(ctx, created); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrActiveGameExists
			}
			return err
		}
		if err := s.store.Pools().Increment(ctx, g.WeekID, domain.PoolDelta{TotalGames: 1, TotalWagered: bet}); err != nil {
			return err
		}
		if err := s.ledger.record(ctx, &domain.QTTransaction{
			FID:    fid,
			Type:   domain.TxBetPlaced,
			Amount: bet,
			GameID: g.GameID,
			WeekID: g.WeekID,
		}); err != nil {
			return err
		}
		after = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.GamesStarted.Inc()
	metrics.QTWagered.Add(float64(bet))
	s.publishPool(ctx, g.WeekID)
	s.log.Info("bet mode game started", "fid", fid, "game_id", g.GameID, "bet", bet, "week_id", g.WeekID)

	return &StartResult{
		Game:        viewGame(g),
		Question:    game.CurrentQuestion(g),
		Multipliers: game.MultiplierTable(),
		Balances:    balancesOf(after),
	}, nil
}

// CheckQuestions fails when the active question pool can no longer fill a game.
func (s *BetService) CheckQuestions(ctx context.Context) error {
	counts, err := s.store.Questions().CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if err := game.CheckPool(counts); err != nil {
		return fmt.Errorf("%w: %v", ErrQuestionsUnavailable, err)
	}
	return nil
}

func (s *BetService) pickQuestions(ctx context.Context) ([]domain.GameQuestion, error) {
	buckets := make([][]domain.Question, 0, len(game.QuestionMix))
	for _, part := range game.QuestionMix {
		qs, err := s.store.Questions().Sample(ctx, part.Difficulties, part.Count)
		if err != nil {
			return nil, fmt.Errorf("sample questions: %w", err)
		}
		buckets = append(buckets, qs)
	}

	questions, err := game.BuildQuestions(buckets)
	if err != nil {
		if errors.Is(err, game.ErrNotEnoughQuestions) {
			s.log.Error("question pool exhausted", "error", err)
			return nil, ErrQuestionsUnavailable
		}
		return nil, err
	}
	return questions, nil
}

// AnswerOutcome is the result of one answer. CorrectIndex is only revealed once the game is over.
type AnswerOutcome struct {
	Correct      bool                  `json:"correct"`
	CorrectIndex *int                  `json:"correctIndex,omitempty"`
	Completed    bool                  `json:"completed"`
	Game         GameView              `json:"game"`
	NextQuestion *game.PublicQuestion  `json:"nextQuestion,omitempty"`
	Payout       int64                 `json:"payout"`
	Balances     Balances              `json:"balances"`
	Tickets      *domain.LotteryTicket `json:"tickets,omitempty"`
}

func (s *BetService) Answer(ctx context.Context, fid int64, gameID string, answerIndex int) (*AnswerOutcome, error) {
	loaded, err := s.loadActive(ctx, fid, gameID)
	if err != nil {
		return nil, err
	}

	var (
		g      *domain.Game
		res    game.AnswerResult
		ticket *domain.LotteryTicket
	)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		g = cloneGame(loaded)
		ticket = nil

		var err error
		res, err = game.Answer(g, answerIndex, s.now())
		if err != nil {
			return mapGameError(err)
		}
		if res.Finished {
			if err := s.ensureWeekOpen(ctx, g.WeekID); err != nil {
				return err
			}
		}
		if err := s.store.Games().Update(ctx, g); err != nil {
			return mapUpdateError(err)
		}

		switch {
		case !res.Finished:
			return nil
		case res.Correct:
			ticket, err = s.ledger.settleWin(ctx, g)
		default:
			ticket, err = s.ledger.settleLoss(ctx, g)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &AnswerOutcome{
		Correct:   res.Correct,
		Completed: res.Finished,
		Game:      viewGame(g),
		Payout:    g.Payout,
		Tickets:   ticket,
	}
	if res.Finished {
		idx := res.CorrectIndex
		out.CorrectIndex = &idx
		s.afterSettle(ctx, g)
	} else {
		out.NextQuestion = game.CurrentQuestion(g)
	}

	acct, err := s.store.Accounts().Get(ctx, fid)
	if err != nil {
		return nil, err
	}
	out.Balances = balancesOf(acct)
	return out, nil
}

type CashOutResult struct {
	Game     GameView              `json:"game"`
	Payout   int64                 `json:"payout"`
	Profit   int64                 `json:"profit"`
	Balances Balances              `json:"balances"`
	Tickets  *domain.LotteryTicket `json:"tickets,omitempty"`
}

// CashOut ends the game at the multiplier of the last correct answer.
func (s *BetService) CashOut(ctx context.Context, fid int64, gameID string) (*CashOutResult, error) {
	loaded, err := s.loadActive(ctx, fid, gameID)
	if err != nil {
		return nil, err
	}

	var (
		g      *domain.Game
		ticket *domain.LotteryTicket
	)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		g = cloneGame(loaded)
		if _, err := game.CashOut(g, s.now()); err != nil {
			return mapGameError(err)
		}
		if err := s.ensureWeekOpen(ctx, g.WeekID); err != nil {
			return err
		}
		if err := s.store.Games().Update(ctx, g); err != nil {
			return mapUpdateError(err)
		}

		var err error
		ticket, err = s.ledger.settleWin(ctx, g)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterSettle(ctx, g)

	acct, err := s.store.Accounts().Get(ctx, fid)
	if err != nil {
		return nil, err
	}
	return &CashOutResult{
		Game:     viewGame(g),
		Payout:   g.Payout,
		Profit:   g.Payout - g.BetAmount,
		Balances: balancesOf(acct),
		Tickets:  ticket,
	}, nil
}

func (s *BetService) loadActive(ctx context.Context, fid int64, gameID string) (*domain.Game, error) {
	if gameID == "" {
		return nil, ErrGameNotFound
	}
	g, err := s.store.Games().Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil || g.FID != fid {
		return nil, ErrGameNotFound
	}
	if !g.IsActive() {
		return nil, ErrGameNotActive
	}
	return g, nil
}

// ensureWeekOpen refuses to settle a game whose week has started finalizing.
// The snapshot forfeits those games itself.
func (s *BetService) ensureWeekOpen(ctx context.Context, weekID string) error {
	p, err := s.store.Pools().Get(ctx, weekID)
	if err != nil {
		return err
	}
	if p != nil && p.Status != domain.PoolStatusOpen {
		return ErrWeekFinalized
	}
	return nil
}

func (s *BetService) afterSettle(ctx context.Context, g *domain.Game) {
	net := g.Payout - g.BetAmount
	s.bus.Publish(ctx, domain.EventGameSettled{Game: *g, Net: net})
	s.publishPool(ctx, g.WeekID)
	s.log.Info("bet mode game settled",
		"fid", g.FID, "game_id", g.GameID, "status", g.Status, "payout", g.Payout, "net", net)
}

func (s *BetService) publishPool(ctx context.Context, weekID string) {
	p, err := s.store.Pools().Get(ctx, weekID)
	if err != nil || p == nil {
		return
	}
	s.bus.Publish(ctx, domain.EventPoolUpdated{Pool: *p})
}

// StatusView is everything the bet mode screen needs in one call.
type StatusView struct {
	Account             *domain.Account       `json:"account"`
	ActiveGame          *GameView             `json:"activeGame"`
	CurrentQuestion     *game.PublicQuestion  `json:"currentQuestion,omitempty"`
	WeekID              string                `json:"weekId"`
	Pool                *PoolView             `json:"pool"`
	Tickets             *domain.LotteryTicket `json:"tickets"`
	BettingOpen         bool                  `json:"bettingOpen"`
	BettingClosesAt     time.Time             `json:"bettingClosesAt"`
	MinBet              int64                 `json:"minBet"`
	MaxBet              int64                 `json:"maxBet"`
	CashOutFromQuestion int                   `json:"cashOutFromQuestion"`
	Multipliers         []map[string]any      `json:"multipliers"`
	LossDistribution    map[string]int        `json:"lossDistribution"`
}

func (s *BetService) Status(ctx context.Context, fid int64) (*StatusView, error) {
	now := s.now()
	weekID := week.ID(now)

	acct, err := s.store.Accounts().GetOrCreate(ctx, fid)
	if err != nil {
		return nil, err
	}

	v := &StatusView{
		Account:             acct,
		WeekID:              weekID,
		BettingOpen:         s.cfg.Window.IsOpen(now),
		BettingClosesAt:     s.cfg.Window.ClosesAt(now),
		MinBet:              s.cfg.MinBet,
		MaxBet:              s.cfg.MaxBet,
		CashOutFromQuestion: game.CashOutFromQuestion,
		Multipliers:         game.MultiplierTable(),
		LossDistribution: map[string]int{
			"burn":     game.BurnSharePercent,
			"lottery":  game.LotterySharePercent,
			"platform": game.PlatformSharePercent,
		},
	}

	g, err := s.store.Games().GetActiveByFID(ctx, fid)
	if err != nil {
		return nil, err
	}
	if g != nil {
		gv := viewGame(g)
		v.ActiveGame = &gv
		v.CurrentQuestion = game.CurrentQuestion(g)
	}

	if v.Pool, err = s.tickets.Pool(ctx, weekID); err != nil {
		return nil, err
	}
	if v.Tickets, err = s.tickets.Get(ctx, weekID, fid); err != nil {
		return nil, err
	}
	return v, nil
}

// History returns the user's latest ledger entries, newest first.
func (s *BetService) History(ctx context.Context, fid int64, limit int) ([]*domain.QTTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	txs, err := s.store.Transactions().ListByFID(ctx, fid, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*domain.QTTransaction{}
	}
	return txs, nil
}

func mapGameError(err error) error {
	switch {
	case errors.Is(err, game.ErrGameNotActive):
		return ErrGameNotActive
	case errors.Is(err, game.ErrInvalidAnswer):
		return ErrInvalidAnswer
	case errors.Is(err, game.ErrCashOutTooEarly):
		return ErrCashOutNotAllowed
	default:
		return err
	}
}

func mapUpdateError(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return ErrConcurrentUpdate
	}
	return err
}
