package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trivia_backend/internal/chain"
	"trivia_backend/internal/domain"
	"trivia_backend/internal/logger"
	"trivia_backend/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultWithdrawalTTL = 30 * time.Minute
	expireBatch          = 100
)

type WalletConfig struct {
	WithdrawalTTL time.Duration
	// Addresses are reported by PlatformWallet when no chain gateway is configured.
	Addresses chain.Addresses
}

// WalletService moves QT between the vault contract and the off-chain ledger.
type WalletService struct {
	store  repository.Store
	ledger *ledger
	chain  Chain
	cfg    WalletConfig
	now    func() time.Time
	log    *slog.Logger
}

func NewWalletService(store repository.Store, ch Chain, cfg WalletConfig) *WalletService {
	if cfg.WithdrawalTTL <= 0 {
		cfg.WithdrawalTTL = defaultWithdrawalTTL
	}
	s := &WalletService{
		store: store,
		chain: ch,
		cfg:   cfg,
		now:   time.Now,
		log:   logger.Component("wallet"),
	}
	s.ledger = &ledger{store: store, now: func() time.Time { return s.now() }}
	return s
}

func (s *WalletService) WithClock(now func() time.Time) *WalletService {
	s.now = now
	return s
}

// PlatformWallet returns the public addresses the client needs for deposits and withdrawals.
func (s *WalletService) PlatformWallet() chain.Addresses {
	if s.chain != nil {
		return s.chain.Addresses()
	}
	return s.cfg.Addresses
}

type DepositResult struct {
	TxHash           string   `json:"txHash"`
	Amount           int64    `json:"amount"`
	WalletAddress    string   `json:"walletAddress"`
	AlreadyProcessed bool     `json:"alreadyProcessed"`
	Balances         Balances `json:"balances"`
}

// VerifyDeposit credits a vault deposit once per transaction hash. The first deposit links
// the sending wallet to the user.
func (s *WalletService) VerifyDeposit(ctx context.Context, fid int64, txHash string) (*DepositResult, error) {
	if s.chain == nil {
		return nil, ErrChainUnavailable
	}
	hash, err := chain.ParseTxHash(txHash)
	if err != nil {
		return nil, ErrInvalidTxHash
	}
	txHash = strings.ToLower(hash.Hex())

	existing, err := s.store.Transactions().GetByTxHash(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.FID != fid || existing.Type != domain.TxDeposit {
			return nil, ErrTxAlreadyUsed
		}
		acct, err := s.store.Accounts().GetOrCreate(ctx, fid)
		if err != nil {
			return nil, err
		}
		return &DepositResult{TxHash: txHash, Amount: existing.Amount, AlreadyProcessed: true, Balances: balancesOf(acct)}, nil
	}

	dep, err := s.chain.FindDeposit(ctx, txHash)
	if err != nil {
		return nil, mapChainLookup(err, ErrDepositNotFound)
	}
	if dep.Amount <= 0 {
		return nil, ErrDepositNotFound
	}

	if err := s.checkWallet(ctx, fid, dep.User); err != nil {
		return nil, err
	}

	var acct *domain.Account
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Users().LinkWallet(ctx, fid, dep.User); err != nil {
			return mapLinkError(err)
		}
		a, err := s.store.Accounts().Apply(ctx, fid, domain.AccountDelta{Balance: dep.Amount, Deposited: dep.Amount})
		if err != nil {
			return err
		}
		if err := s.ledger.record(ctx, &domain.QTTransaction{
			FID:    fid,
			Type:   domain.TxDeposit,
			Amount: dep.Amount,
			TxHash: txHash,
			Meta:   map[string]any{"wallet": dep.User, "blockNumber": dep.BlockNumber},
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrTxAlreadyUsed
			}
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit credited", "fid", fid, "tx_hash", txHash, "amount", dep.Amount, "wallet", dep.User)
	return &DepositResult{TxHash: txHash, Amount: dep.Amount, WalletAddress: dep.User, Balances: balancesOf(acct)}, nil
}

// checkWallet makes sure wallet is, or can become, the user's linked wallet.
func (s *WalletService) checkWallet(ctx context.Context, fid int64, wallet string) error {
	u, err := s.store.Users().Get(ctx, fid)
	if err != nil {
		return err
	}
	if u != nil && u.WalletAddress != "" && !strings.EqualFold(u.WalletAddress, wallet) {
		return ErrWalletMismatch
	}
	owner, err := s.store.Users().GetByWallet(ctx, wallet)
	if err != nil {
		return err
	}
	if owner != nil && owner.FID != fid {
		return ErrWalletTaken
	}
	return nil
}

func (s *WalletService) linkedWallet(ctx context.Context, fid int64) (string, error) {
	u, err := s.store.Users().Get(ctx, fid)
	if err != nil {
		return "", err
	}
	if u == nil || u.WalletAddress == "" {
		return "", ErrWalletNotLinked
	}
	return u.WalletAddress, nil
}

type SyncResult struct {
	VaultBalance int64    `json:"vaultBalance"`
	Credited     int64    `json:"credited"`
	Balances     Balances `json:"balances"`
}

// SyncDeposit credits QT that reached the vault without a verified deposit, e.g. a transfer
// made outside the app. It refuses to run while vault updates are still queued, because the
// difference would then include in-flight game results.
func (s *WalletService) SyncDeposit(ctx context.Context, fid int64) (*SyncResult, error) {
	if s.chain == nil {
		return nil, ErrChainUnavailable
	}
	wallet, err := s.linkedWallet(ctx, fid)
	if err != nil {
		return nil, err
	}

	pending, err := s.store.Outbox().CountPending(ctx, fid)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrSyncPending
	}

	onChain, err := s.chain.VaultBalance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}

	res := &SyncResult{VaultBalance: onChain}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		res.Credited = 0

		acct, err := s.store.Accounts().GetOrCreate(ctx, fid)
		if err != nil {
			return err
		}
		expected := acct.Total()
		// a prepared withdrawal is already debited off-chain but still sits in the vault
		w, err := s.store.Withdrawals().GetPendingByFID(ctx, fid)
		if err != nil {
			return err
		}
		if w != nil {
			expected += w.Amount
		}

		diff := onChain - expected
		if diff <= 0 {
			res.Balances = balancesOf(acct)
			return nil
		}

		a, err := s.store.Accounts().Apply(ctx, fid, domain.AccountDelta{Balance: diff, Deposited: diff})
		if err != nil {
			return err
		}
		if err := s.ledger.record(ctx, &domain.QTTransaction{
			FID:    fid,
			Type:   domain.TxDepositSync,
			Amount: diff,
			Meta:   map[string]any{"vaultBalance": onChain, "ledgerBalance": expected},
		}); err != nil {
			return err
		}
		res.Credited = diff
		res.Balances = balancesOf(a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Credited > 0 {
		s.log.Info("deposit synced from vault", "fid", fid, "amount", res.Credited, "vault_balance", onChain)
	}
	return res, nil
}

type WithdrawalView struct {
	*domain.Withdrawal
	VaultAddress string `json:"vaultAddress"`
	ChainID      int64  `json:"chainId"`
}

// PrepareWithdrawal reserves amount and returns the signed authorization the user submits to
// the vault. The signature is only handed out once the reservation is committed.
func (s *WalletService) PrepareWithdrawal(ctx context.Context, fid int64, amount int64) (*WithdrawalView, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if s.chain == nil {
		return nil, ErrChainUnavailable
	}
	wallet, err := s.linkedWallet(ctx, fid)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Withdrawals().GetPendingByFID(ctx, fid)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrWithdrawalPending
	}
	pending, err := s.store.Outbox().CountPending(ctx, fid)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrSyncPending
	}

	acct, err := s.store.Accounts().GetOrCreate(ctx, fid)
	if err != nil {
		return nil, err
	}
	if acct.QTBalance < amount {
		return nil, ErrInsufficientBalance
	}

	now := s.now()
	deadline := now.Add(s.cfg.WithdrawalTTL).Truncate(time.Second)
	auth, err := s.chain.AuthorizeWithdrawal(ctx, wallet, amount, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}

	w := &domain.Withdrawal{
		ID:            uuid.NewString(),
		FID:           fid,
		WalletAddress: wallet,
		Amount:        amount,
		AmountWei:     auth.AmountWei,
		Nonce:         auth.Nonce,
		Deadline:      auth.Deadline,
		Signature:     auth.Signature,
		Status:        domain.WithdrawalPending,
		ExpiresAt:     deadline,
		CreatedAt:     now,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Accounts().Apply(ctx, fid, domain.AccountDelta{Balance: -amount}); err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return ErrInsufficientBalance
			}
			return err
		}
		if err := s.store.Withdrawals().Create(ctx, w); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrWithdrawalPending
			}
			return err
		}
		return s.ledger.record(ctx, &domain.QTTransaction{
			FID:    fid,
			Type:   domain.TxWithdrawPrepared,
			Amount: amount,
			Ref:    "withdrawal:" + w.ID,
			Status: domain.TxStatusPending,
			Meta:   map[string]any{"nonce": w.Nonce, "deadline": w.Deadline},
		})
	})
	if err != nil {
		return nil, err
	}

	addrs := s.chain.Addresses()
	s.log.Info("withdrawal prepared", "fid", fid, "withdrawal_id", w.ID, "amount", amount, "nonce", w.Nonce)
	return &WithdrawalView{Withdrawal: w, VaultAddress: addrs.Vault, ChainID: addrs.ChainID}, nil
}

// ConfirmWithdrawal completes a prepared withdrawal once its vault Withdrawn event is found.
func (s *WalletService) ConfirmWithdrawal(ctx context.Context, fid int64, withdrawalID, txHash string) (*domain.Withdrawal, error) {
	if s.chain == nil {
		return nil, ErrChainUnavailable
	}
	hash, err := chain.ParseTxHash(txHash)
	if err != nil {
		return nil, ErrInvalidTxHash
	}
	txHash = strings.ToLower(hash.Hex())

	w, err := s.store.Withdrawals().Get(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w == nil || w.FID != fid {
		return nil, ErrWithdrawalNotFound
	}
	switch w.Status {
	case domain.WithdrawalCompleted:
		if strings.EqualFold(w.TxHash, txHash) {
			return w, nil
		}
		return nil, ErrTxAlreadyUsed
	case domain.WithdrawalExpired:
		return nil, ErrWithdrawalExpired
	}

	ev, err := s.chain.FindWithdrawal(ctx, txHash)
	if err != nil {
		return nil, mapChainLookup(err, ErrWithdrawalMismatch)
	}
	if !strings.EqualFold(ev.User, w.WalletAddress) || ev.AmountWei == nil || ev.AmountWei.String() != w.AmountWei {
		return nil, ErrWithdrawalMismatch
	}

	used, err := s.store.Transactions().GetByTxHash(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if used != nil {
		return nil, ErrTxAlreadyUsed
	}

	if err := s.complete(ctx, w, txHash, nil); err != nil {
		return nil, err
	}
	s.log.Info("withdrawal completed", "fid", fid, "withdrawal_id", w.ID, "tx_hash", txHash, "amount", w.Amount)
	return s.store.Withdrawals().Get(ctx, w.ID)
}

func (s *WalletService) complete(ctx context.Context, w *domain.Withdrawal, txHash string, meta map[string]any) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Withdrawals().Finish(ctx, w.ID, domain.WithdrawalCompleted, txHash, s.now()); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return ErrConcurrentUpdate
			}
			return err
		}
		if _, err := s.store.Accounts().Apply(ctx, w.FID, domain.AccountDelta{Withdrawn: w.Amount}); err != nil {
			return err
		}
		err := s.ledger.record(ctx, &domain.QTTransaction{
			FID:    w.FID,
			Type:   domain.TxWithdraw,
			Amount: w.Amount,
			TxHash: txHash,
			Ref:    "withdrawal:" + w.ID,
			Meta:   meta,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrTxAlreadyUsed
		}
		return err
	})
}

type ExpireReport struct {
	Expired   int `json:"expired"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
}

// ExpireWithdrawals settles withdrawals whose signed deadline has passed. An unused nonce
// proves the authorization was never executed and the reservation is refunded. A used nonce
// is ambiguous, because balance syncs consume nonces too, so the vault balance decides.
func (s *WalletService) ExpireWithdrawals(ctx context.Context) (*ExpireReport, error) {
	if s.chain == nil {
		return nil, ErrChainUnavailable
	}
	list, err := s.store.Withdrawals().ListExpired(ctx, s.now(), expireBatch)
	if err != nil {
		return nil, err
	}

	report := &ExpireReport{}
	for _, w := range list {
		executed, known, err := s.wasExecuted(ctx, w)
		if err != nil || !known {
			if err != nil {
				s.log.Warn("withdrawal expiry check failed", "withdrawal_id", w.ID, "error", err)
			}
			report.Skipped++
			continue
		}

		if executed {
			if err := s.complete(ctx, w, "", map[string]any{"detectedBy": "expiry"}); err != nil {
				s.log.Error("complete executed withdrawal", "withdrawal_id", w.ID, "error", err)
				report.Skipped++
				continue
			}
			report.Completed++
			s.log.Info("withdrawal found executed at expiry", "fid", w.FID, "withdrawal_id", w.ID)
			continue
		}

		if err := s.refund(ctx, w); err != nil {
			s.log.Error("refund expired withdrawal", "withdrawal_id", w.ID, "error", err)
			report.Skipped++
			continue
		}
		report.Expired++
		s.log.Info("withdrawal expired and refunded", "fid", w.FID, "withdrawal_id", w.ID, "amount", w.Amount)
	}
	return report, nil
}

// wasExecuted reports whether the vault withdrawal happened. known is false while the answer
// depends on vault updates still queued for the user.
func (s *WalletService) wasExecuted(ctx context.Context, w *domain.Withdrawal) (executed, known bool, err error) {
	nonce, err := s.chain.VaultNonce(ctx, w.WalletAddress)
	if err != nil {
		return false, false, err
	}
	if nonce <= w.Nonce {
		return false, true, nil
	}

	pending, err := s.store.Outbox().CountPending(ctx, w.FID)
	if err != nil {
		return false, false, err
	}
	if pending > 0 {
		return false, false, nil
	}

	onChain, err := s.chain.VaultBalance(ctx, w.WalletAddress)
	if err != nil {
		return false, false, err
	}
	acct, err := s.store.Accounts().GetOrCreate(ctx, w.FID)
	if err != nil {
		return false, false, err
	}
	// still in the vault means the reserved amount was never withdrawn
	return onChain-acct.Total() < w.Amount, true, nil
}

func (s *WalletService) refund(ctx context.Context, w *domain.Withdrawal) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Withdrawals().Finish(ctx, w.ID, domain.WithdrawalExpired, "", s.now()); err != nil {
			return err
		}
		if _, err := s.store.Accounts().Apply(ctx, w.FID, domain.AccountDelta{Balance: w.Amount}); err != nil {
			return err
		}
		return s.ledger.record(ctx, &domain.QTTransaction{
			FID:    w.FID,
			Type:   domain.TxWithdrawRefund,
			Amount: w.Amount,
			Ref:    "withdrawal:" + w.ID,
		})
	})
}

func mapChainLookup(err, notFound error) error {
	switch {
	case errors.Is(err, chain.ErrInvalidTxHash):
		return ErrInvalidTxHash
	case errors.Is(err, chain.ErrTxNotFound), errors.Is(err, chain.ErrEventNotFound), errors.Is(err, chain.ErrTxReverted):
		return fmt.Errorf("%w: %v", notFound, err)
	default:
		return fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
}

func mapLinkError(err error) error {
	switch {
	case errors.Is(err, repository.ErrWalletAlreadyTaken):
		return ErrWalletTaken
	case errors.Is(err, repository.ErrConditionFailed):
		return ErrWalletMismatch
	default:
		return err
	}
}
