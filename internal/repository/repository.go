// Package repository declares the storage contracts of the bet mode ledger.
// Getters return (nil, nil) when the document does not exist.
package repository

import (
	"context"
	"errors"
	"time"

	"trivia_backend/internal/domain"
)

var (
	ErrDuplicate          = errors.New("duplicate key")
	ErrConflict           = errors.New("concurrent modification")
	ErrConditionFailed    = errors.New("condition not met")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrWalletAlreadyTaken = errors.New("wallet linked to another user")
)

type AccountRepository interface {
	Get(ctx context.Context, fid int64) (*domain.Account, error)
	GetOrCreate(ctx context.Context, fid int64) (*domain.Account, error)
	// Apply increments the account atomically, creating it when the delta is not a debit.
	// Returns ErrInsufficientFunds if a balance would go negative.
	Apply(ctx context.Context, fid int64, d domain.AccountDelta) (*domain.Account, error)
}

type GameRepository interface {
	// Create returns ErrDuplicate when the user already has an active game.
	Create(ctx context.Context, g *domain.Game) error
	Get(ctx context.Context, gameID string) (*domain.Game, error)
	GetActiveByFID(ctx context.Context, fid int64) (*domain.Game, error)
	// Update replaces the game if its version is unchanged and bumps the version.
	// Returns ErrConflict otherwise.
	Update(ctx context.Context, g *domain.Game) error
	ListActiveByWeek(ctx context.Context, weekID string) ([]*domain.Game, error)
}

type QuestionRepository interface {
	// Sample returns up to n random active questions of the given difficulties.
	Sample(ctx context.Context, difficulties []domain.Difficulty, n int) ([]domain.Question, error)
	Insert(ctx context.Context, qs []domain.Question) error
	CountActive(ctx context.Context) (map[domain.Difficulty]int64, error)
}

type PoolRepository interface {
	Get(ctx context.Context, weekID string) (*domain.WeeklyPool, error)
	Ensure(ctx context.Context, weekID string) (*domain.WeeklyPool, error)
	Increment(ctx context.Context, weekID string, d domain.PoolDelta) error
	// Claim moves the pool from one status to the next, or takes over an expired lease on the
	// target status. Returns ErrConditionFailed when neither applies.
	Claim(ctx context.Context, weekID string, from, to domain.PoolStatus, lease time.Duration, now time.Time) (*domain.WeeklyPool, error)
	Release(ctx context.Context, weekID string, from, to domain.PoolStatus, lastError string) error
	CompleteSnapshot(ctx context.Context, weekID string, finalPool, totalTickets int64, participants int) error
	SetDrawSeed(ctx context.Context, weekID, seed string) error
	CompleteDraw(ctx context.Context, weekID string, out domain.DrawOutcome) error
	// SetBurnTx records the signed burn transfer before it is broadcast. Empty values forget it.
	SetBurnTx(ctx context.Context, weekID, txHash, rawTx string) error
	CompleteBurn(ctx context.Context, weekID, txHash string) error
}

type TicketRepository interface {
	// RecordPlay counts one settled game for the user and returns the updated document.
	RecordPlay(ctx context.Context, weekID string, fid int64, wagered int64, day string, bonus float64) (*domain.LotteryTicket, error)
	SetTotals(ctx context.Context, t *domain.LotteryTicket) error
	SetRanges(ctx context.Context, weekID string, ranges []domain.TicketRange) error
	Get(ctx context.Context, weekID string, fid int64) (*domain.LotteryTicket, error)
	ListByWeek(ctx context.Context, weekID string) ([]*domain.LotteryTicket, error)
}

type TransactionRepository interface {
	// Create returns ErrDuplicate for a reused on-chain tx hash.
	Create(ctx context.Context, tx *domain.QTTransaction) error
	ListByFID(ctx context.Context, fid int64, limit int) ([]*domain.QTTransaction, error)
	GetByTxHash(ctx context.Context, txHash string) (*domain.QTTransaction, error)
}

type BurnRepository interface {
	Create(ctx context.Context, b *domain.BurnRecord) error
	GetByWeek(ctx context.Context, weekID string) (*domain.BurnRecord, error)
}

type UserRepository interface {
	Get(ctx context.Context, fid int64) (*domain.User, error)
	GetByWallet(ctx context.Context, wallet string) (*domain.User, error)
	// LinkWallet sets the wallet if the user has none. Returns ErrConditionFailed if a
	// different wallet is linked and ErrWalletAlreadyTaken if another user owns it.
	LinkWallet(ctx context.Context, fid int64, wallet string) error
	// ListWithWallet pages through users with a linked wallet ordered by fid.
	ListWithWallet(ctx context.Context, afterFID int64, limit int) ([]*domain.User, error)
}

type OutboxRepository interface {
	// Enqueue returns ErrDuplicate if the id was already enqueued.
	Enqueue(ctx context.Context, e *domain.OutboxEntry) error
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.OutboxEntry, error)
	MarkSent(ctx context.Context, id, txHash string) error
	MarkRetry(ctx context.Context, id string, next time.Time, lastError string) error
	// Hold reschedules a claimed entry and gives back the attempt the claim counted.
	Hold(ctx context.Context, id string, next time.Time, reason string) error
	MarkFailed(ctx context.Context, id, lastError string) error
	CountPending(ctx context.Context, fid int64) (int64, error)
}

type PayoutRepository interface {
	// Insert returns ErrDuplicate if the payout was already recorded.
	Insert(ctx context.Context, p *domain.LotteryPayout) error
	ListByWeek(ctx context.Context, weekID string) ([]*domain.LotteryPayout, error)
}

type WithdrawalRepository interface {
	// Create returns ErrDuplicate when the user already has a pending withdrawal.
	Create(ctx context.Context, w *domain.Withdrawal) error
	Get(ctx context.Context, id string) (*domain.Withdrawal, error)
	GetPendingByFID(ctx context.Context, fid int64) (*domain.Withdrawal, error)
	// Finish moves a pending withdrawal to completed or expired.
	Finish(ctx context.Context, id string, status domain.WithdrawalStatus, txHash string, now time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Withdrawal, error)
}

type ReconciliationRepository interface {
	Insert(ctx context.Context, logs []domain.ReconciliationLog) error
}

// Store groups the repositories sharing one database.
type Store interface {
	Accounts() AccountRepository
	Games() GameRepository
	Questions() QuestionRepository
	Pools() PoolRepository
	Tickets() TicketRepository
	Transactions() TransactionRepository
	Burns() BurnRepository
	Users() UserRepository
	Outbox() OutboxRepository
	Payouts() PayoutRepository
	Withdrawals() WithdrawalRepository
	Reconciliation() ReconciliationRepository

	// WithTx runs fn in a transaction. Repositories called with the ctx passed to fn
	// take part in it. Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
