package handler

import (
	"errors"
	"go-ledger/common"
	"go-ledger/service"
	"net/http"
)

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// ledgerError maps a ledger error kind to its HTTP status.
func ledgerError(err error, fallback string) *common.AppError {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return common.NewAppError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, service.ErrAccountNotFound):
		return common.NewAppError(http.StatusNotFound, err.Error(), err)
	case errors.Is(err, service.ErrInsufficientFunds):
		return common.NewAppError(http.StatusConflict, err.Error(), err)
	case errors.Is(err, service.ErrStorageFailure):
		return common.NewAppError(http.StatusServiceUnavailable, fallback, err)
	default:
		return common.NewAppError(http.StatusInternalServerError, fallback, err)
	}
}
