package service

import (
	"context"
	"time"

	"trivia_backend/internal/chain"
	"trivia_backend/internal/domain"
)

// Chain is the on-chain gateway used by the services. *chain.Client implements it.
// Services treat a nil Chain as "not configured" and fail with ErrChainUnavailable.
type Chain interface {
	Addresses() chain.Addresses
	LatestBlockHash(ctx context.Context) ([]byte, error)
	VaultBalance(ctx context.Context, wallet string) (int64, error)
	VaultNonce(ctx context.Context, wallet string) (uint64, error)
	SyncBalance(ctx context.Context, kind domain.SyncKind, wallet string, amount int64) (string, error)
	AuthorizeWithdrawal(ctx context.Context, wallet string, amount int64, deadline time.Time) (*chain.WithdrawalAuth, error)
	FindDeposit(ctx context.Context, txHash string) (*chain.Transfer, error)
	FindWithdrawal(ctx context.Context, txHash string) (*chain.Transfer, error)
	SignBurn(ctx context.Context, amount int64) (*chain.SignedTx, error)
	SendRawTx(ctx context.Context, raw string) error
	Receipt(ctx context.Context, txHash string) (*chain.Receipt, error)
	WaitTx(ctx context.Context, txHash string) (*chain.Receipt, error)
}

var _ Chain = (*chain.Client)(nil)
