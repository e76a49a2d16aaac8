package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is either a deposit or a withdrawal request
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

// TransactionStatus only ever moves pending -> approved or pending -> rejected.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusApproved, TransactionStatusRejected:
		return true
	}
	return false
}

// Transaction is a deposit or withdrawal request awaiting (or past) an admin decision.
type Transaction struct {
	ID        string            `json:"id"`
	AccountID int64             `json:"account_id"`
	Kind      TransactionKind   `json:"kind"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Address   string            `json:"address,omitempty"` // withdrawals only
	Timestamp time.Time         `json:"timestamp"`
	DecidedAt *time.Time        `json:"decided_at,omitempty"`
	Version   uint64            `json:"version"`
}

func (t *Transaction) Pending() bool {
	return t.Status == TransactionStatusPending
}
