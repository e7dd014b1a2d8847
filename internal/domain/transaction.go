package domain

import "time"

type TransactionType string

const (
	TxBetPlaced          TransactionType = "bet_placed"
	TxBetWon             TransactionType = "bet_won"
	TxBetLost            TransactionType = "bet_lost"
	TxLotteryWin         TransactionType = "lottery_win"
	TxLotteryConsolation TransactionType = "lottery_consolation"
	TxDeposit            TransactionType = "deposit"
	TxDepositSync        TransactionType = "deposit_sync"
	TxWithdrawPrepared   TransactionType = "withdraw_prepared"
	TxWithdraw           TransactionType = "withdraw"
	TxWithdrawRefund     TransactionType = "withdraw_refund"
)

const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
)

// QTTransaction is an append-only audit entry.
type QTTransaction struct {
	ID        string          `bson:"id" json:"id"`
	FID       int64           `bson:"fid" json:"fid"`
	Type      TransactionType `bson:"type" json:"type"`
	Amount    int64           `bson:"amount" json:"amount"`
	GameID    string          `bson:"gameId,omitempty" json:"gameId,omitempty"`
	WeekID    string          `bson:"weekId,omitempty" json:"weekId,omitempty"`
	TxHash    string          `bson:"txHash,omitempty" json:"txHash,omitempty"`
	Ref       string          `bson:"ref,omitempty" json:"ref,omitempty"`
	Status    string          `bson:"status" json:"status"`
	Meta      map[string]any  `bson:"meta,omitempty" json:"meta,omitempty"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
}

// BurnRecord is written once per completed burn.
type BurnRecord struct {
	WeekID      string    `bson:"weekId" json:"weekId"`
	Amount      int64     `bson:"amount" json:"amount"`
	TxHash      string    `bson:"txHash" json:"txHash"`
	BlockNumber uint64    `bson:"blockNumber" json:"blockNumber"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
}
