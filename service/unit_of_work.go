package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-ledger/logger"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// ParseIsolationLevel maps a config value to a database/sql isolation level.
func ParseIsolationLevel(level string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "read_committed", "read committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read", "repeatable read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unsupported isolation level %q", level)
	}
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pgSerializationFailure || pqErr.Code == pgDeadlockDetected
}

func isLockTimeout(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgLockNotAvailable
}

// withTx runs fn inside one database transaction. It commits only when fn
// succeeds; every other exit path rolls back.
func (s *LedgerService) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !opts.ReadOnly && s.opts.LockTimeout > 0 {
		// SET does not accept bind parameters; the value is an integer in ms.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.opts.LockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// runMutation executes one balance-mutating unit of work, retrying it when
// the database aborts it for a serialization conflict or deadlock.
func (s *LedgerService) runMutation(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	opts := &sql.TxOptions{Isolation: s.opts.Isolation}

	var err error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		err = s.withTx(ctx, opts, fn)
		if err == nil || !isRetryable(err) {
			break
		}
		logger.Log.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt,
		}).WithError(err).Warn("Unit of work aborted by a concurrent writer, retrying")
	}
	if err == nil {
		return nil
	}
	if isRetryable(err) {
		return storageFailure(op+": retries exhausted", err)
	}
	return classify(op, err)
}

// classify passes domain errors through untouched and turns everything else
// into a storage failure.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrStorageFailure):
		return err
	case isLockTimeout(err):
		return storageFailure(op+": lock wait timed out", err)
	default:
		return storageFailure(op, err)
	}
}
