package domain

import "time"

// Account is the off-chain QT ledger of a Farcaster user.
// Amounts are whole QT units.
type Account struct {
	FID              int64     `bson:"fid" json:"fid"`
	QTBalance        int64     `bson:"qtBalance" json:"qtBalance"`
	QTLockedBalance  int64     `bson:"qtLockedBalance" json:"qtLockedBalance"`
	QTTotalDeposited int64     `bson:"qtTotalDeposited" json:"qtTotalDeposited"`
	QTTotalWithdrawn int64     `bson:"qtTotalWithdrawn" json:"qtTotalWithdrawn"`
	QTTotalWagered   int64     `bson:"qtTotalWagered" json:"qtTotalWagered"`
	QTTotalWon       int64     `bson:"qtTotalWon" json:"qtTotalWon"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Total is what the vault contract is expected to hold for the user.
func (a *Account) Total() int64 {
	return a.QTBalance + a.QTLockedBalance
}

// AccountDelta is applied to an account as a single atomic increment.
type AccountDelta struct {
	Balance   int64
	Locked    int64
	Deposited int64
	Withdrawn int64
	Wagered   int64
	Won       int64
}

// IsDebit reports whether the delta can take a balance below zero.
func (d AccountDelta) IsDebit() bool {
	return d.Balance < 0 || d.Locked < 0
}
