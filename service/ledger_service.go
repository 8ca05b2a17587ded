// file: service/ledger_service.go

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-ledger/logger"
	"go-ledger/model"
	"go-ledger/repository"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 3
	defaultCacheTTL    = time.Minute
)

// LedgerOptions tunes the balance-mutation policy. Zero values select the
// defaults: three attempts, read committed isolation, time.Now as the clock.
// Same-account mutations are serialized by the row lock at every level.
type LedgerOptions struct {
	AllowNegativeInitialBalance bool
	MaxAttempts                 int
	LockTimeout                 time.Duration
	// CacheTTL bounds how long a cached balance may trail a committed write.
	CacheTTL                    time.Duration
	Isolation                   sql.IsolationLevel
	Now                         func() time.Time
}

// LedgerService owns the invariant that an account's stored balance equals the
// sum of its logged transaction amounts. Every balance change and its log
// entry are written in the same database transaction.
type LedgerService struct {
	db           *sql.DB
	accounts     repository.IAccountRepository
	transactions repository.ITransactionRepository
	cache        ICacheClient
	opts         LedgerOptions
}

// NewLedgerService wires the ledger. cache may be nil to disable balance caching.
func NewLedgerService(db *sql.DB, accounts repository.IAccountRepository, transactions repository.ITransactionRepository, cache ICacheClient, opts LedgerOptions) *LedgerService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Isolation == sql.LevelDefault {
		opts.Isolation = sql.LevelReadCommitted
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LedgerService{
		db:           db,
		accounts:     accounts,
		transactions: transactions,
		cache:        cache,
		opts:         opts,
	}
}

func (s *LedgerService) now() time.Time {
	return s.opts.Now().UTC()
}

// CreateAccount inserts the account and its opening deposit entry atomically
// and returns the new account ID.
func (s *LedgerService) CreateAccount(ctx context.Context, name string, initialBalance decimal.Decimal) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptyName
	}
	if initialBalance.IsNegative() && !s.opts.AllowNegativeInitialBalance {
		return 0, ErrNegativeInitialBalance
	}
	if !model.WithinScale(initialBalance) {
		return 0, ErrAmountPrecision
	}

	log := logger.Log.WithFields(logrus.Fields{
		"name":            name,
		"initial_balance": initialBalance.String(),
	})
	log.Info("Creating account")

	var accountID int64
	err := s.runMutation(ctx, "create account", func(tx *sql.Tx) error {
		account := &model.Account{Name: name, Balance: initialBalance}
		if err := s.accounts.CreateAccount(ctx, tx, account); err != nil {
			return fmt.Errorf("could not create account: %w", err)
		}

		entry := &model.Transaction{
			AccountID:   account.ID,
			Type:        model.TransactionTypeDeposit,
			Amount:      initialBalance,
			Timestamp:   s.now(),
			Description: model.DescriptionAccountCreated,
		}
		if err := s.transactions.CreateTransaction(ctx, tx, entry); err != nil {
			return fmt.Errorf("could not create transaction record: %w", err)
		}

		accountID = account.ID
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Account creation failed")
		return 0, err
	}

	log.WithField("account_id", accountID).Info("Account created")
	return accountID, nil
}

// validateAmount accepts only positive amounts that the store keeps exactly.
// Anything finer than AmountScale would be rounded separately in the balance
// and in the log entry.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !model.WithinScale(amount) {
		return ErrAmountPrecision
	}
	return nil
}

// Deposit adds a positive amount to the account balance.
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	return s.applyDelta(ctx, accountID, amount, model.TransactionTypeDeposit, model.DescriptionDeposit)
}

// Withdraw removes a positive amount from the account balance. It fails with
// ErrInsufficientFunds, writing nothing, when the balance is below amount.
func (s *LedgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	return s.applyDelta(ctx, accountID, amount.Neg(), model.TransactionTypeWithdrawal, model.DescriptionWithdrawal)
}

// applyDelta locks the account row, applies delta and appends the matching
// log entry in one unit of work. A negative delta may not overdraw.
func (s *LedgerService) applyDelta(ctx context.Context, accountID int64, delta decimal.Decimal, txType model.TransactionType, description string) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": accountID,
		"type":       txType,
		"amount":     delta.String(),
	})
	log.Info("Applying balance change")

	err := s.runMutation(ctx, string(txType), func(tx *sql.Tx) error {
		account, err := s.accounts.GetAccountForUpdate(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("could not lock account: %w", err)
		}

		if delta.IsNegative() && account.Balance.LessThan(delta.Neg()) {
			return ErrInsufficientFunds
		}

		newBalance := account.Balance.Add(delta)
		if err := s.accounts.UpdateAccountBalance(ctx, tx, accountID, newBalance); err != nil {
			return fmt.Errorf("could not update balance: %w", err)
		}

		entry := &model.Transaction{
			AccountID:   accountID,
			Type:        txType,
			Amount:      delta,
			Timestamp:   s.now(),
			Description: description,
		}
		if err := s.transactions.CreateTransaction(ctx, tx, entry); err != nil {
			return fmt.Errorf("could not create transaction record: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrAccountNotFound) {
			log.WithError(err).Warn("Balance change rejected")
		} else {
			log.WithError(err).Error("Balance change failed")
		}
		return err
	}

	s.invalidateBalance(ctx, accountID)
	log.Info("Balance change committed")
	return nil
}

// GetBalance returns the committed balance of the account.
func (s *LedgerService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	if balance, ok := s.cachedBalance(ctx, accountID); ok {
		return balance, nil
	}

	account, err := s.accounts.GetAccountByID(ctx, s.db, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, storageFailure("get balance", err)
	}

	s.storeBalance(ctx, accountID, account.Balance)
	return account.Balance, nil
}

// GetHistory returns every transaction of the account in ascending id order.
func (s *LedgerService) GetHistory(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	var history []*model.Transaction
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}
	err := s.withTx(ctx, opts, func(tx *sql.Tx) error {
		if _, err := s.accounts.GetAccountByID(ctx, tx, accountID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAccountNotFound
			}
			return err
		}

		var err error
		history, err = s.transactions.GetTransactionsByAccountID(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, classify("get history", err)
	}
	return history, nil
}

// Reconcile recomputes the balance from the transaction log and compares it
// with the stored balance, both read from one snapshot.
func (s *LedgerService) Reconcile(ctx context.Context, accountID int64) (*model.Reconciliation, error) {
	var result *model.Reconciliation
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := s.withTx(ctx, opts, func(tx *sql.Tx) error {
		account, err := s.accounts.GetAccountByID(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAccountNotFound
			}
			return err
		}

		sum, count, err := s.transactions.SumAmountsByAccountID(ctx, tx, accountID)
		if err != nil {
			return err
		}

		result = &model.Reconciliation{
			AccountID:        accountID,
			Balance:          account.Balance,
			LedgerSum:        sum,
			TransactionCount: count,
			Consistent:       account.Balance.Equal(sum),
		}
		return nil
	})
	if err != nil {
		return nil, classify("reconcile", err)
	}

	if !result.Consistent {
		logger.Log.WithFields(logrus.Fields{
			"account_id": accountID,
			"balance":    result.Balance.String(),
			"ledger_sum": result.LedgerSum.String(),
		}).Error("Stored balance diverges from transaction log")
	}
	return result, nil
}
