package repository

import (
	"context"
	"database/sql"
	"errors"
	"go-ledger/logger"
	"go-ledger/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// IAccountRepository defines the contract for account database operations.
// Every write takes the caller's *sql.Tx so it commits with its log entry.
type IAccountRepository interface {
	CreateAccount(ctx context.Context, tx *sql.Tx, account *model.Account) error
	GetAccountByID(ctx context.Context, q Querier, accountID int64) (*model.Account, error)
	GetAccountForUpdate(ctx context.Context, tx *sql.Tx, accountID int64) (*model.Account, error)
	UpdateAccountBalance(ctx context.Context, tx *sql.Tx, accountID int64, newBalance decimal.Decimal) error
}

type AccountRepository struct{}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts the account row and fills in its ID and CreatedAt.
func (r *AccountRepository) CreateAccount(ctx context.Context, tx *sql.Tx, account *model.Account) error {
	log := logger.Log.WithFields(logrus.Fields{
		"name":    account.Name,
		"balance": account.Balance.String(),
	})
	log.Debug("Executing query to create a new account")

	query := `INSERT INTO accounts (name, balance) VALUES ($1, $2) RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, account.Name, account.Balance).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create account query")
		return err
	}
	return nil
}

// GetAccountByID returns sql.ErrNoRows when the account does not exist.
func (r *AccountRepository) GetAccountByID(ctx context.Context, q Querier, accountID int64) (*model.Account, error) {
	log := logger.Log.WithField("account_id", accountID)
	log.Debug("Executing query to get account by ID")

	account := &model.Account{}
	query := `SELECT id, name, balance, created_at FROM accounts WHERE id = $1`
	err := q.QueryRowContext(ctx, query, accountID).Scan(&account.ID, &account.Name, &account.Balance, &account.CreatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.WithError(err).Error("Failed to execute get account by ID query")
		}
		return nil, err
	}
	return account, nil
}

// GetAccountForUpdate reads the account and holds its row lock until tx ends.
func (r *AccountRepository) GetAccountForUpdate(ctx context.Context, tx *sql.Tx, accountID int64) (*model.Account, error) {
	log := logger.Log.WithField("account_id", accountID)
	log.Debug("Executing query to get account for update")

	account := &model.Account{}
	query := `SELECT id, name, balance, created_at FROM accounts WHERE id = $1 FOR UPDATE`
	err := tx.QueryRowContext(ctx, query, accountID).Scan(&account.ID, &account.Name, &account.Balance, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("Account not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get account for update query")
		}
		return nil, err
	}
	return account, nil
}

// UpdateAccountBalance returns sql.ErrNoRows if no row was changed.
func (r *AccountRepository) UpdateAccountBalance(ctx context.Context, tx *sql.Tx, accountID int64, newBalance decimal.Decimal) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id":  accountID,
		"new_balance": newBalance.String(),
	})
	log.Debug("Executing query to update account balance")

	query := `UPDATE accounts SET balance = $1 WHERE id = $2`
	res, err := tx.ExecContext(ctx, query, newBalance, accountID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update account balance query")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
