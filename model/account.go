package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the stored projection of an account's transaction log. Balance
// must always equal the sum of the account's transaction amounts.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Reconciliation compares an account's stored balance with the sum of its log.
type Reconciliation struct {
	AccountID        int64           `json:"account_id"`
	Balance          decimal.Decimal `json:"balance"`
	LedgerSum        decimal.Decimal `json:"ledger_sum"`
	TransactionCount int64           `json:"transaction_count"`
	Consistent       bool            `json:"consistent"`
}
