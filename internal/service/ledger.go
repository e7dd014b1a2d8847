package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/game"
	"trivia_backend/internal/repository"

	"github.com/google/uuid"
)

var errAlreadyPaid = errors.New("payout already recorded")

// ledger holds the balance movements shared by the bet, lottery and wallet services.
// Methods taking a ctx expect to run inside store.WithTx unless noted otherwise.
type ledger struct {
	store   repository.Store
	tickets *TicketService
	now     func() time.Time
}

func (l *ledger) record(ctx context.Context, tx *domain.QTTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = domain.TxStatusCompleted
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.now()
	}
	return l.store.Transactions().Create(ctx, tx)
}

// enqueueSync schedules the vault mirror of a ledger change. The entry id is ref:kind,
// so a ref can be enqueued at most once per direction.
func (l *ledger) enqueueSync(ctx context.Context, fid int64, kind domain.SyncKind, amount int64, ref string) error {
	if amount <= 0 {
		return nil
	}
	now := l.now()
	return l.store.Outbox().Enqueue(ctx, &domain.OutboxEntry{
		ID:            ref + ":" + string(kind),
		FID:           fid,
		Kind:          kind,
		Amount:        amount,
		Ref:           ref,
		Status:        domain.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func gameRef(g *domain.Game) string {
	return "game:" + g.GameID
}

// settleLoss books a game that already moved to lost: the locked bet leaves the account,
// is split into the weekly pool and the user earns the consolation ticket.
func (l *ledger) settleLoss(ctx context.Context, g *domain.Game) (*domain.LotteryTicket, error) {
	b := g.BetAmount
	if _, err := l.store.Accounts().Apply(ctx, g.FID, domain.AccountDelta{Locked: -b}); err != nil {
		return nil, fmt.Errorf("release locked bet: %w", err)
	}

	split := game.CalculateLossDistribution(b)
	if err := l.store.Pools().Increment(ctx, g.WeekID, domain.PoolDelta{
		TotalLosses: b,
		ToBurn:      split.Burn,
		Lottery:     split.Lottery,
		Platform:    split.Platform,
	}); err != nil {
		return nil, fmt.Errorf("pool increment: %w", err)
	}

	ticket, err := l.tickets.Accrue(ctx, g, game.LossBonusTickets)
	if err != nil {
		return nil, err
	}

	if err := l.record(ctx, &domain.QTTransaction{
		FID:    g.FID,
		Type:   domain.TxBetLost,
		Amount: b,
		GameID: g.GameID,
		WeekID: g.WeekID,
		Meta: map[string]any{
			"question":  g.CurrentQuestion,
			"forfeited": g.Forfeited,
			"burn":      split.Burn,
			"lottery":   split.Lottery,
			"platform":  split.Platform,
		},
	}); err != nil {
		return nil, err
	}

	if err := l.enqueueSync(ctx, g.FID, domain.SyncDebit, b, gameRef(g)); err != nil {
		return nil, fmt.Errorf("enqueue vault debit: %w", err)
	}
	return ticket, nil
}

// settleWin books a game that already moved to won or cashed_out.
func (l *ledger) settleWin(ctx context.Context, g *domain.Game) (*domain.LotteryTicket, error) {
	b := g.BetAmount
	if _, err := l.store.Accounts().Apply(ctx, g.FID, domain.AccountDelta{
		Balance: g.Payout,
		Locked:  -b,
		Won:     g.Payout,
	}); err != nil {
		return nil, fmt.Errorf("credit payout: %w", err)
	}

	if err := l.store.Pools().Increment(ctx, g.WeekID, domain.PoolDelta{TotalPayouts: g.Payout}); err != nil {
		return nil, fmt.Errorf("pool increment: %w", err)
	}

	ticket, err := l.tickets.Accrue(ctx, g, 0)
	if err != nil {
		return nil, err
	}

	if err := l.record(ctx, &domain.QTTransaction{
		FID:    g.FID,
		Type:   domain.TxBetWon,
		Amount: g.Payout,
		GameID: g.GameID,
		WeekID: g.WeekID,
		Meta: map[string]any{
			"question":   g.CurrentQuestion,
			"multiplier": g.Multiplier,
			"bet":        b,
			"status":     string(g.Status),
		},
	}); err != nil {
		return nil, err
	}

	if err := l.enqueueSync(ctx, g.FID, domain.SyncCredit, g.Payout-b, gameRef(g)); err != nil {
		return nil, fmt.Errorf("enqueue vault credit: %w", err)
	}
	return ticket, nil
}

// payPrize credits one lottery payout in its own transaction, guarded by the payout marker.
// Returns false when the marker already exists.
func (l *ledger) payPrize(ctx context.Context, p domain.LotteryPayout, typ domain.TransactionType) (bool, error) {
	err := l.store.WithTx(ctx, func(ctx context.Context) error {
		marker := p
		marker.CreatedAt = l.now()
		if err := l.store.Payouts().Insert(ctx, &marker); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errAlreadyPaid
			}
			return err
		}

		if _, err := l.store.Accounts().Apply(ctx, p.FID, domain.AccountDelta{Balance: p.Amount, Won: p.Amount}); err != nil {
			return err
		}

		ref := fmt.Sprintf("lottery:%s:%d:%d", p.WeekID, p.Position, p.FID)
		if err := l.record(ctx, &domain.QTTransaction{
			FID:    p.FID,
			Type:   typ,
			Amount: p.Amount,
			WeekID: p.WeekID,
			Ref:    ref,
			Meta: map[string]any{
				"position":     p.Position,
				"tier":         p.Tier,
				"ticketNumber": p.TicketNumber,
			},
		}); err != nil {
			return err
		}
		return l.enqueueSync(ctx, p.FID, domain.SyncCredit, p.Amount, ref)
	})
	if errors.Is(err, errAlreadyPaid) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// cloneGame copies g deeply so a retried transaction starts from the loaded state.
func cloneGame(g *domain.Game) *domain.Game {
	c := *g
	c.Questions = make([]domain.GameQuestion, len(g.Questions))
	for i, q := range g.Questions {
		q.Options = append([]string(nil), q.Options...)
		if q.UserAnswer != nil {
			v := *q.UserAnswer
			q.UserAnswer = &v
		}
		if q.IsCorrect != nil {
			v := *q.IsCorrect
			q.IsCorrect = &v
		}
		if q.AnsweredAt != nil {
			v := *q.AnsweredAt
			q.AnsweredAt = &v
		}
		c.Questions[i] = q
	}
	if g.CompletedAt != nil {
		v := *g.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
