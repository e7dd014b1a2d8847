package domain

import "time"

type User struct {
	FID           int64     `bson:"fid" json:"fid"`
	Username      string    `bson:"username,omitempty" json:"username,omitempty"`
	WalletAddress string    `bson:"walletAddress,omitempty" json:"walletAddress,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalExpired   WithdrawalStatus = "expired"
)

// Withdrawal is an amount reserved off-chain while the user executes the signed vault withdrawal.
type Withdrawal struct {
	ID            string           `bson:"id" json:"id"`
	FID           int64            `bson:"fid" json:"fid"`
	WalletAddress string           `bson:"walletAddress" json:"walletAddress"`
	Amount        int64            `bson:"amount" json:"amount"`
	AmountWei     string           `bson:"amountWei" json:"amountWei"`
	Nonce         uint64           `bson:"nonce" json:"nonce"`
	Deadline      int64            `bson:"deadline" json:"deadline"`
	Signature     string           `bson:"signature" json:"signature"`
	Status        WithdrawalStatus `bson:"status" json:"status"`
	TxHash        string           `bson:"txHash,omitempty" json:"txHash,omitempty"`
	ExpiresAt     time.Time        `bson:"expiresAt" json:"expiresAt"`
	CreatedAt     time.Time        `bson:"createdAt" json:"createdAt"`
	CompletedAt   *time.Time       `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// ReconciliationLog records one balance mismatch between the ledger and the vault.
type ReconciliationLog struct {
	RunID           string    `bson:"runId" json:"runId"`
	FID             int64     `bson:"fid" json:"fid"`
	WalletAddress   string    `bson:"walletAddress" json:"walletAddress"`
	DBBalance       int64     `bson:"dbBalance" json:"dbBalance"`
	ContractBalance int64     `bson:"contractBalance" json:"contractBalance"`
	Difference      int64     `bson:"difference" json:"difference"`
	InFlight        bool      `bson:"inFlight" json:"inFlight"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}
