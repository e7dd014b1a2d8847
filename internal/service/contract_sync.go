package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/metrics"
	"trivia_backend/internal/repository"
)

const (
	outboxLease       = 2 * time.Minute
	outboxBatch       = 50
	outboxMaxAttempts = 8
	outboxRetryBase   = 30 * time.Second
	outboxRetryMax    = 30 * time.Minute
	outboxWaitTimeout = time.Minute
)

// ContractSync drains the outbox, mirroring ledger changes onto the vault contract.
// Delivery is at least once; the vault nonce in every signed message prevents replays.
type ContractSync struct {
	store       repository.Store
	chain       Chain
	now         func() time.Time
	log         *slog.Logger
	waitTimeout time.Duration
}

func NewContractSync(store repository.Store, ch Chain) *ContractSync {
	return &ContractSync{
		store:       store,
		chain:       ch,
		now:         time.Now,
		log:         logger.Component("contract_sync"),
		waitTimeout: outboxWaitTimeout,
	}
}

func (s *ContractSync) WithClock(now func() time.Time) *ContractSync {
	s.now = now
	return s
}

type OutboxReport struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
	Held    int `json:"held"`
}

// outcome of one entry, also the metrics label
const (
	syncSent   = "sent"
	syncRetry  = "retry"
	syncFailed = "failed"
	syncHeld   = "held"
)

// ProcessOutbox handles one batch of due entries, one at a time so that entries of the
// same user never race on the vault nonce.
func (s *ContractSync) ProcessOutbox(ctx context.Context) (*OutboxReport, error) {
	if s.chain == nil {
		return nil, ErrChainUnavailable
	}

	entries, err := s.store.Outbox().ClaimDue(ctx, s.now(), outboxLease, outboxBatch)
	if err != nil {
		return nil, err
	}

	report := &OutboxReport{Claimed: len(entries)}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch s.process(ctx, e) {
		case syncSent:
			report.Sent++
		case syncFailed:
			report.Failed++
		case syncHeld:
			report.Held++
		default:
			report.Retried++
		}
	}

	if report.Claimed > 0 {
		s.log.Info("outbox batch processed", "claimed", report.Claimed, "sent", report.Sent,
			"retried", report.Retried, "failed", report.Failed, "held", report.Held)
	}
	return report, nil
}

func (s *ContractSync) process(ctx context.Context, e *domain.OutboxEntry) string {
	log := s.log.With("outbox_id", e.ID, "fid", e.FID, "kind", e.Kind, "amount", e.Amount, "attempt", e.Attempts)

	user, err := s.store.Users().Get(ctx, e.FID)
	if err != nil {
		return s.retry(ctx, e, err, log)
	}
	if user == nil || user.WalletAddress == "" {
		return s.fail(ctx, e, errors.New("no wallet linked"), log)
	}

	// a pending withdrawal is signed over the current vault nonce, any sync would void it
	w, err := s.store.Withdrawals().GetPendingByFID(ctx, e.FID)
	if err != nil {
		return s.retry(ctx, e, err, log)
	}
	if w != nil {
		return s.hold(ctx, e, w, log)
	}

	txHash, err := s.chain.SyncBalance(ctx, e.Kind, user.WalletAddress, e.Amount)
	if err != nil {
		return s.retry(ctx, e, err, log)
	}

	wctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	receipt, err := s.chain.WaitTx(wctx, txHash)
	cancel()
	switch {
	case err != nil:
		// submitted but not mined in time; the nonce already guards against a second apply
		log.Warn("vault sync not confirmed yet", "tx_hash", txHash, "error", err)
	case !receipt.Success:
		return s.retry(ctx, e, errors.New("vault sync reverted: "+txHash), log)
	}

	if err := s.store.Outbox().MarkSent(ctx, e.ID, txHash); err != nil {
		log.Error("mark outbox entry sent", "tx_hash", txHash, "error", err)
	}
	metrics.OutboxResults.WithLabelValues(string(e.Kind), syncSent).Inc()
	log.Info("vault balance synced", "tx_hash", txHash)
	return syncSent
}

// hold puts the entry back without spending an attempt. It becomes due again once the
// withdrawal is confirmed or expired, whichever the next poll finds first.
func (s *ContractSync) hold(ctx context.Context, e *domain.OutboxEntry, w *domain.Withdrawal, log *slog.Logger) string {
	next := s.now().Add(outboxRetryBase)
	if err := s.store.Outbox().Hold(ctx, e.ID, next, "withdrawal "+w.ID+" pending"); err != nil {
		log.Error("hold outbox entry", "error", err)
	}
	metrics.OutboxResults.WithLabelValues(string(e.Kind), syncHeld).Inc()
	log.Info("vault sync held back by pending withdrawal", "withdrawal_id", w.ID, "next_attempt", next)
	return syncHeld
}

func (s *ContractSync) retry(ctx context.Context, e *domain.OutboxEntry, cause error, log *slog.Logger) string {
	if e.Attempts >= outboxMaxAttempts {
		return s.fail(ctx, e, cause, log)
	}
	next := s.now().Add(backoff(e.Attempts, outboxRetryBase, outboxRetryMax))
	if err := s.store.Outbox().MarkRetry(ctx, e.ID, next, cause.Error()); err != nil {
		log.Error("mark outbox entry for retry", "error", err)
	}
	metrics.OutboxResults.WithLabelValues(string(e.Kind), syncRetry).Inc()
	log.Warn("vault sync failed, will retry", "next_attempt", next, "error", cause)
	return syncRetry
}

func (s *ContractSync) fail(ctx context.Context, e *domain.OutboxEntry, cause error, log *slog.Logger) string {
	if err := s.store.Outbox().MarkFailed(ctx, e.ID, cause.Error()); err != nil {
		log.Error("mark outbox entry failed", "error", err)
	}
	metrics.OutboxResults.WithLabelValues(string(e.Kind), syncFailed).Inc()
	log.Error("vault sync gave up", "error", cause)
	return syncFailed
}
