package domain

import "time"

// SyncKind is the vault balance operation mirrored by an outbox entry.
type SyncKind string

const (
	SyncCredit SyncKind = "credit"
	SyncDebit  SyncKind = "debit"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxSent       OutboxStatus = "sent"
	OutboxFailed     OutboxStatus = "failed"
)

// OutboxEntry is a pending vault balance update. ID is the idempotency key.
type OutboxEntry struct {
	ID             string       `bson:"id" json:"id"`
	FID            int64        `bson:"fid" json:"fid"`
	Kind           SyncKind     `bson:"kind" json:"kind"`
	Amount         int64        `bson:"amount" json:"amount"`
	Ref            string       `bson:"ref" json:"ref"`
	Status         OutboxStatus `bson:"status" json:"status"`
	Attempts       int          `bson:"attempts" json:"attempts"`
	NextAttemptAt  time.Time    `bson:"nextAttemptAt" json:"nextAttemptAt"`
	LeaseExpiresAt *time.Time   `bson:"leaseExpiresAt,omitempty" json:"-"`
	LastError      string       `bson:"lastError,omitempty" json:"lastError,omitempty"`
	TxHash         string       `bson:"txHash,omitempty" json:"txHash,omitempty"`
	CreatedAt      time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time    `bson:"updatedAt" json:"updatedAt"`
}
