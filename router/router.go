package router

import (
	"go-ledger/handler"
	"net/http"
)

func NewRouter(ledgerHandler *handler.LedgerHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)

	mux.Handle("POST /api/accounts", handler.ErrorHandlingMiddleware(ledgerHandler.CreateAccount))
	mux.Handle("POST /api/accounts/{accountId}/deposits", handler.ErrorHandlingMiddleware(ledgerHandler.Deposit))
	mux.Handle("POST /api/accounts/{accountId}/withdrawals", handler.ErrorHandlingMiddleware(ledgerHandler.Withdraw))
	mux.Handle("GET /api/accounts/{accountId}/balance", handler.ErrorHandlingMiddleware(ledgerHandler.GetBalance))
	mux.Handle("GET /api/accounts/{accountId}/transactions", handler.ErrorHandlingMiddleware(ledgerHandler.GetHistory))
	mux.Handle("GET /api/accounts/{accountId}/reconciliation", handler.ErrorHandlingMiddleware(ledgerHandler.Reconcile))

	return handler.RequestLogger(mux)
}
