package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trivia_backend/internal/chain"
	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/notify"
	"trivia_backend/internal/repository"
	"trivia_backend/internal/week"
)

const (
	burnSendAttempts = 3
	burnRetryBase    = 2 * time.Second
	burnWaitTimeout  = 5 * time.Minute
)

// BurnService sends the weekly burn share to the burn address once the draw is done.
type BurnService struct {
	store       repository.Store
	bus         *event.Bus
	chain       Chain
	notifier    notify.Notifier
	now         func() time.Time
	log         *slog.Logger
	retryBase   time.Duration
	waitTimeout time.Duration
}

func NewBurnService(store repository.Store, bus *event.Bus, ch Chain, n notify.Notifier) *BurnService {
	if n == nil {
		n = notify.NewDiscord("")
	}
	return &BurnService{
		store:       store,
		bus:         bus,
		chain:       ch,
		notifier:    n,
		now:         time.Now,
		log:         logger.Component("burn"),
		retryBase:   burnRetryBase,
		waitTimeout: burnWaitTimeout,
	}
}

func (s *BurnService) WithClock(now func() time.Time) *BurnService {
	s.now = now
	return s
}

type BurnResult struct {
	WeekID      string `json:"weekId"`
	Amount      int64  `json:"amount"`
	TxHash      string `json:"txHash,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// Burn transfers toBurnAccumulated of a drawn week to the burn address.
// The signed transaction is stored before broadcast, so a failed run resumes on the same transaction.
func (s *BurnService) Burn(ctx context.Context, weekID string) (*BurnResult, error) {
	if _, err := week.Start(weekID); err != nil {
		return nil, ErrInvalidWeekID
	}

	p, err := s.store.Pools().Get(ctx, weekID)
	if err != nil {
		return nil, err
	}
	switch {
	case p == nil || !p.Status.Reached(domain.PoolStatusDrawn):
		return nil, ErrNotDrawn
	case p.Status.Reached(domain.PoolStatusBurned):
		return nil, ErrAlreadyDone
	case s.chain == nil && p.ToBurnAccumulated > 0:
		return nil, ErrChainUnavailable
	}

	p, err = claimPool(ctx, s.store.Pools(), weekID,
		domain.PoolStatusDrawn, domain.PoolStatusBurning, domain.PoolStatusBurned, s.now())
	if err != nil {
		return nil, err
	}

	res, err := s.burn(ctx, p)
	if err != nil {
		s.log.Error("burn failed", "week_id", weekID, "error", err)
		if rerr := s.store.Pools().Release(ctx, weekID, domain.PoolStatusBurning, domain.PoolStatusDrawn, err.Error()); rerr != nil {
			s.log.Error("release burn claim", "week_id", weekID, "error", rerr)
		}
		m := notify.Message{
			Title:       "Weekly burn failed",
			Description: err.Error(),
			Color:       notify.ColorError,
			Fields: []notify.Field{
				{Name: "Week", Value: weekID, Inline: true},
				{Name: "Amount", Value: fmt.Sprintf("%d QT", p.ToBurnAccumulated), Inline: true},
			},
		}
		if nerr := s.notifier.Notify(ctx, m); nerr != nil {
			s.log.Warn("discord notify failed", "error", nerr)
		}
		return nil, err
	}

	s.bus.Publish(ctx, domain.EventBurnCompleted{WeekID: weekID, Amount: res.Amount, TxHash: res.TxHash})
	s.log.Info("weekly burn completed", "week_id", weekID, "amount", res.Amount, "tx_hash", res.TxHash)
	return res, nil
}

func (s *BurnService) burn(ctx context.Context, p *domain.WeeklyPool) (*BurnResult, error) {
	res := &BurnResult{WeekID: p.WeekID, Amount: p.ToBurnAccumulated}
	if res.Amount <= 0 {
		res.Amount = 0
		return res, s.store.Pools().CompleteBurn(ctx, p.WeekID, "")
	}

	txHash, raw := p.BurnTxHash, p.BurnRawTx
	var receipt *chain.Receipt
	if txHash == "" {
		signed, err := s.chain.SignBurn(ctx, res.Amount)
		if err != nil {
			return nil, fmt.Errorf("sign burn: %w", err)
		}
		// stored before broadcast: every later attempt resends this exact transaction
		if err := s.store.Pools().SetBurnTx(ctx, p.WeekID, signed.Hash, signed.Raw); err != nil {
			return nil, fmt.Errorf("store burn tx %s: %w", signed.Hash, err)
		}
		txHash, raw = signed.Hash, signed.Raw
	} else {
		r, err := s.chain.Receipt(ctx, txHash)
		if err != nil && !errors.Is(err, chain.ErrTxNotFound) {
			return nil, fmt.Errorf("burn receipt %s: %w", txHash, err)
		}
		receipt = r
	}

	if receipt == nil && raw != "" {
		nonceUsed := false
		err := retry(ctx, burnSendAttempts, s.retryBase, func(ctx context.Context) error {
			err := s.chain.SendRawTx(ctx, raw)
			switch {
			case errors.Is(err, chain.ErrNonceUsed):
				nonceUsed = true
				return nil
			case err != nil:
				s.log.Warn("burn broadcast attempt failed", "week_id", p.WeekID, "tx_hash", txHash, "error", err)
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("send burn: %w", err)
		}
		if nonceUsed {
			// nonce went to another transaction, look once more in case it was this one
			r, err := s.chain.Receipt(ctx, txHash)
			if err != nil && !errors.Is(err, chain.ErrTxNotFound) {
				return nil, fmt.Errorf("burn receipt %s: %w", txHash, err)
			}
			if r == nil {
				return nil, s.dropBurnTx(ctx, p.WeekID, txHash)
			}
			receipt = r
		}
	}

	if receipt == nil {
		wctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
		defer cancel()
		r, err := s.chain.WaitTx(wctx, txHash)
		if err != nil {
			return nil, fmt.Errorf("wait burn tx %s: %w", txHash, err)
		}
		receipt = r
	}
	if !receipt.Success {
		// forget the reverted transfer so the next run signs a new one
		if err := s.store.Pools().SetBurnTx(ctx, p.WeekID, "", ""); err != nil {
			s.log.Error("clear reverted burn tx", "week_id", p.WeekID, "error", err)
		}
		return nil, fmt.Errorf("burn tx %s: %w", txHash, chain.ErrTxReverted)
	}

	res.TxHash = receipt.TxHash
	res.BlockNumber = receipt.BlockNumber
	err := s.store.Burns().Create(ctx, &domain.BurnRecord{
		WeekID:      p.WeekID,
		Amount:      res.Amount,
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		Timestamp:   s.now(),
	})
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("burn record: %w", err)
	}

	if err := s.store.Pools().CompleteBurn(ctx, p.WeekID, res.TxHash); err != nil {
		return nil, fmt.Errorf("complete burn: %w", err)
	}
	return res, nil
}

// dropBurnTx forgets a signed transfer whose nonce was taken by another transaction.
func (s *BurnService) dropBurnTx(ctx context.Context, weekID, txHash string) error {
	if err := s.store.Pools().SetBurnTx(ctx, weekID, "", ""); err != nil {
		return fmt.Errorf("clear burn tx %s: %w", txHash, err)
	}
	s.log.Warn("burn tx nonce reused, cleared for re-signing", "week_id", weekID, "tx_hash", txHash)
	return fmt.Errorf("burn tx %s: %w", txHash, chain.ErrNonceUsed)
}
