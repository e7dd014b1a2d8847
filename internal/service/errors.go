package service

import "errors"

var (
	ErrInvalidBet           = errors.New("invalid bet amount")
	ErrBetTooLow            = errors.New("bet below minimum")
	ErrBetTooHigh           = errors.New("bet exceeds maximum")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrBetWindowClosed      = errors.New("betting is closed for this week")
	ErrActiveGameExists     = errors.New("you already have an active game")
	ErrGameNotFound         = errors.New("game not found")
	ErrGameNotActive        = errors.New("game is not active")
	ErrInvalidAnswer        = errors.New("invalid answer index")
	ErrCashOutNotAllowed    = errors.New("cash out is available from question 5")
	ErrConcurrentUpdate     = errors.New("game was modified concurrently, retry")
	ErrWeekFinalized        = errors.New("week is being finalized, the game will be settled by the snapshot")
	ErrQuestionsUnavailable = errors.New("not enough questions available")

	ErrInvalidWeekID    = errors.New("invalid week id")
	ErrWeekNotEnded     = errors.New("week has not ended yet")
	ErrPoolNotFound     = errors.New("weekly pool not found")
	ErrSnapshotNotTaken = errors.New("snapshot has not been taken")
	ErrNotDrawn         = errors.New("lottery has not been drawn")
	ErrAlreadyDone      = errors.New("step already completed")
	ErrInProgress       = errors.New("step is already running")

	ErrChainUnavailable   = errors.New("chain gateway unavailable")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTxHash      = errors.New("invalid transaction hash")
	ErrWalletNotLinked    = errors.New("no wallet linked to this account")
	ErrWalletMismatch     = errors.New("transaction was sent from a different wallet")
	ErrWalletTaken        = errors.New("wallet is linked to another account")
	ErrDepositNotFound    = errors.New("no vault deposit found in transaction")
	ErrSyncPending        = errors.New("balance sync in progress, retry later")
	ErrWithdrawalPending  = errors.New("a withdrawal is already pending")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrWithdrawalMismatch = errors.New("transaction does not match the withdrawal")
	ErrWithdrawalExpired  = errors.New("withdrawal expired")
	ErrTxAlreadyUsed      = errors.New("transaction already processed for another request")
)
