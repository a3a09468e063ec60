// Package ledger implements the account ledger: account rows, an append-only
// transaction log, and the engine that mutates both under one unit of work.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a ledger event. Amounts are always positive; the direction
// of the effect on the balance is carried by the kind.
type Kind string

const (
	KindInitialDeposit Kind = "Initial Deposit"
	KindDeposit        Kind = "Deposit"
	KindWithdrawal     Kind = "Withdrawal"
	KindTransferOut    Kind = "Transfer Out"
	KindTransferIn     Kind = "Transfer In"
)

// Signed returns amount with the sign the kind implies, so summing the
// signed amounts of an account's records reproduces its balance.
func (k Kind) Signed(amount decimal.Decimal) decimal.Decimal {
	switch k {
	case KindWithdrawal, KindTransferOut:
		return amount.Neg()
	default:
		return amount
	}
}

type Account struct {
	AccountNumber int64           `json:"account_number"`
	Name          string          `json:"name"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TransactionRecord is immutable once written; nothing in this package
// updates or deletes rows in the transactions table.
type TransactionRecord struct {
	TransactionID int64           `json:"transaction_id"`
	AccountNumber int64           `json:"account_number"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}
