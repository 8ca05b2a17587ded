package repository

import (
	"context"
	"database/sql"
	"go-ledger/logger"
	"go-ledger/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ITransactionRepository defines the contract for the append-only transaction log.
type ITransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *sql.Tx, transaction *model.Transaction) error
	GetTransactionsByAccountID(ctx context.Context, q Querier, accountID int64) ([]*model.Transaction, error)
	SumAmountsByAccountID(ctx context.Context, q Querier, accountID int64) (decimal.Decimal, int64, error)
}

// TransactionRepository implements ITransactionRepository.
type TransactionRepository struct{}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction appends an entry and fills in its ID. Entries are never
// updated or deleted afterwards.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx *sql.Tx, transaction *model.Transaction) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": transaction.AccountID,
		"type":       transaction.Type,
		"amount":     transaction.Amount.String(),
	})
	log.Debug("Executing query to create a new transaction")

	query := `INSERT INTO transactions (account_id, type, amount, timestamp, description) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		transaction.AccountID,
		string(transaction.Type),
		transaction.Amount,
		transaction.Timestamp,
		transaction.Description,
	).Scan(&transaction.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute create transaction query")
		return err
	}
	return nil
}

// GetTransactionsByAccountID returns the account's entries in ascending id
// order. The result is never nil.
func (r *TransactionRepository) GetTransactionsByAccountID(ctx context.Context, q Querier, accountID int64) ([]*model.Transaction, error) {
	log := logger.Log.WithField("account_id", accountID)
	log.Debug("Executing query to get transactions by account ID")

	query := `
		SELECT id, account_id, type, amount, timestamp, description
		FROM transactions
		WHERE account_id = $1
		ORDER BY id ASC`

	rows, err := q.QueryContext(ctx, query, accountID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for transactions by account ID")
		return nil, err
	}
	defer rows.Close()

	transactions := make([]*model.Transaction, 0)
	for rows.Next() {
		var t model.Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.AccountID, &txType, &t.Amount, &t.Timestamp, &t.Description); err != nil {
			log.WithError(err).Error("Failed to scan transaction row")
			return nil, err
		}
		t.Type = model.TransactionType(txType)
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Error("Failed to iterate transaction rows")
		return nil, err
	}

	return transactions, nil
}

// SumAmountsByAccountID returns the sum of all logged deltas and the entry count.
func (r *TransactionRepository) SumAmountsByAccountID(ctx context.Context, q Querier, accountID int64) (decimal.Decimal, int64, error) {
	log := logger.Log.WithField("account_id", accountID)
	log.Debug("Executing query to sum transactions by account ID")

	var sum decimal.Decimal
	var count int64
	query := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM transactions WHERE account_id = $1`
	if err := q.QueryRowContext(ctx, query, accountID).Scan(&sum, &count); err != nil {
		log.WithError(err).Error("Failed to execute sum transactions query")
		return decimal.Zero, 0, err
	}
	return sum, count, nil
}
