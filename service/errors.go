package service

import (
	"errors"
	"fmt"
	"go-ledger/model"
)

// Error kinds returned by LedgerService. Callers should match them with
// errors.Is; storage errors additionally wrap the driver error.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidAmount          = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrNonPositiveAmount      = fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	ErrAmountPrecision        = fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, model.AmountScale)
	ErrEmptyName              = fmt.Errorf("%w: account name must not be empty", ErrInvalidInput)
	ErrNegativeInitialBalance = fmt.Errorf("%w: initial balance must not be negative", ErrInvalidInput)

	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorageFailure    = errors.New("storage failure")
)

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
