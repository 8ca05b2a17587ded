package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places stored for balances and
// amounts. It matches the NUMERIC(20, 4) columns.
const AmountScale int32 = 4

// WithinScale reports whether d is exactly representable at AmountScale.
// Trailing zeros beyond the scale are fine.
func WithinScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal:
		return true
	}
	return false
}

const (
	DescriptionAccountCreated = "Account created with initial balance"
	DescriptionDeposit        = "Deposit made"
	DescriptionWithdrawal     = "Withdrawal made"
)

// Transaction is one immutable log entry. Amount is the signed delta that was
// applied to the balance: positive for deposits, negative for withdrawals.
type Transaction struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Description string          `json:"description"`
}
