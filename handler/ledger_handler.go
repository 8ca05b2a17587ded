package handler

import (
	"context"
	"encoding/json"
	"go-ledger/common"
	"go-ledger/logger"
	"go-ledger/model"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ILedgerService is the part of service.LedgerService the HTTP adapter uses.
type ILedgerService interface {
	CreateAccount(ctx context.Context, name string, initialBalance decimal.Decimal) (int64, error)
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) error
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) error
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	GetHistory(ctx context.Context, accountID int64) ([]*model.Transaction, error)
	Reconcile(ctx context.Context, accountID int64) (*model.Reconciliation, error)
}

type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt0"`
}

type BalanceResponse struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// LedgerHandler exposes the ledger operations over JSON HTTP.
type LedgerHandler struct {
	service ILedgerService
}

func NewLedgerHandler(s ILedgerService) *LedgerHandler {
	return &LedgerHandler{service: s}
}

func accountIDFromPath(r *http.Request) (int64, *common.AppError) {
	accountID, err := strconv.ParseInt(r.PathValue("accountId"), 10, 64)
	if err != nil || accountID <= 0 {
		return 0, common.NewAppError(http.StatusBadRequest, "Invalid account ID in URL path", err)
	}
	return accountID, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// CreateAccount godoc
// @Summary      Open an account
// @Description  Creates an account and logs its initial balance as the first deposit, atomically.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        account body CreateAccountRequest true "Account name and initial balance"
// @Success      201  {object}  map[string]int64 "The new account ID"
// @Failure      400  {object}  common.AppError "Empty name, negative or over-precise initial balance"
// @Failure      503  {object}  common.AppError "Storage failure"
// @Router       /api/accounts [post]
func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req CreateAccountRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"request_id": RequestID(r.Context()),
		"name":       req.Name,
	}).Info("Create account request received")

	id, err := h.service.CreateAccount(r.Context(), req.Name, req.InitialBalance)
	if err != nil {
		return ledgerError(err, "Could not create account")
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	return nil
}

// Deposit godoc
// @Summary      Deposit into an account
// @Description  Adds a positive amount to the balance and appends a deposit entry in one transaction.
// @Tags         accounts
// @Accept       json
// @Param        accountId path int true "Account ID"
// @Param        deposit body AmountRequest true "Amount, at most 4 decimal places"
// @Success      204
// @Failure      400  {object}  common.AppError "Invalid account ID or amount"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      503  {object}  common.AppError "Storage failure"
// @Router       /api/accounts/{accountId}/deposits [post]
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) *common.AppError {
	return h.changeBalance(w, r, "deposit", h.service.Deposit)
}

// Withdraw godoc
// @Summary      Withdraw from an account
// @Description  Removes a positive amount from the balance and appends a withdrawal entry. Never overdraws.
// @Tags         accounts
// @Accept       json
// @Param        accountId path int true "Account ID"
// @Param        withdrawal body AmountRequest true "Amount, at most 4 decimal places"
// @Success      204
// @Failure      400  {object}  common.AppError "Invalid account ID or amount"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      409  {object}  common.AppError "Insufficient funds"
// @Failure      503  {object}  common.AppError "Storage failure"
// @Router       /api/accounts/{accountId}/withdrawals [post]
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) *common.AppError {
	return h.changeBalance(w, r, "withdrawal", h.service.Withdraw)
}

func (h *LedgerHandler) changeBalance(w http.ResponseWriter, r *http.Request, kind string, apply func(context.Context, int64, decimal.Decimal) error) *common.AppError {
	accountID, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	var req AmountRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"request_id": RequestID(r.Context()),
		"account_id": accountID,
		"type":       kind,
		"amount":     req.Amount.String(),
	}).Info("Balance change request received")

	if err := apply(r.Context(), accountID, req.Amount); err != nil {
		return ledgerError(err, "Could not process "+kind)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GetBalance godoc
// @Summary      Show account balance
// @Tags         accounts
// @Produce      json
// @Param        accountId path int true "Account ID"
// @Success      200  {object}  BalanceResponse
// @Failure      400  {object}  common.AppError "Invalid account ID in URL path"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      503  {object}  common.AppError "Storage failure"
// @Router       /api/accounts/{accountId}/balance [get]
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) *common.AppError {
	accountID, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	balance, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		return ledgerError(err, "Could not retrieve balance")
	}

	writeJSON(w, http.StatusOK, BalanceResponse{AccountID: accountID, Balance: balance})
	return nil
}

// GetHistory godoc
// @Summary      List account transaction history
// @Description  Returns every log entry of the account in the order it was written.
// @Tags         transactions
// @Produce      json
// @Param        accountId path int true "Account ID"
// @Success      200  {array}   model.Transaction
// @Failure      400  {object}  common.AppError "Invalid account ID in URL path"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      503  {object}  common.AppError "Storage failure"
// @Router       /api/accounts/{accountId}/transactions [get]
func (h *LedgerHandler) GetHistory(w http.ResponseWriter, r *http.Request) *common.AppError {
	accountID, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	history, err := h.service.GetHistory(r.Context(), accountID)
	if err != nil {
		return ledgerError(err, "Could not retrieve transactions")
	}

	writeJSON(w, http.StatusOK, history)
	return nil
}

// Reconcile godoc
// @Summary      Verify an account against its log
// @Description  Compares the stored balance with the sum of logged amounts from one snapshot.
// @Tags         accounts
// @Produce      json
// @Param        accountId path int true "Account ID"
// @Success      200  {object}  model.Reconciliation
// @Failure      400  {object}  common.AppError "Invalid account ID in URL path"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      503  {object}  common.AppError "Storage failure"
// @Router       /api/accounts/{accountId}/reconciliation [get]
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) *common.AppError {
	accountID, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	result, err := h.service.Reconcile(r.Context(), accountID)
	if err != nil {
		return ledgerError(err, "Could not reconcile account")
	}

	writeJSON(w, http.StatusOK, result)
	return nil
}
