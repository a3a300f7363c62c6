package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WalletHandler exposes balances and the ledger
type WalletHandler struct {
	wallet *services.WalletService
	logger *logrus.Logger
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(wallet *services.WalletService, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{
		wallet: wallet,
		logger: logger,
	}
}

// bindWalletRequest decodes the body and checks its validate tags
func (h *WalletHandler) bindWalletRequest(c *gin.Context, req interface{}) bool {
	if !bindJSON(c, req) {
		return false
	}
	if err := services.ValidateRequest(req); err != nil {
		respondError(c, h.logger, err)
		return false
	}
	return true
}

func parseAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   "amount",
			"message": "amount must be a decimal number",
		})
		return decimal.Zero, false
	}
	return amount.Round(2), true
}

// GetWallet returns the caller's balance and recent transactions
// GET /api/v1/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit, offset := pagination(c, 10)

	summary, err := h.wallet.GetWallet(c.Request.Context(), actor.AccountID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListTransactions pages through the caller's ledger
// GET /api/v1/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit, offset := pagination(c, 50)

	summary, err := h.wallet.GetWallet(c.Request.Context(), actor.AccountID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": summary.Transactions,
		"limit":        limit,
		"offset":       offset,
	})
}

// Withdraw pays a host out to their primary bank account
// POST /api/v1/wallet/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.WithdrawalRequest
	if !h.bindWalletRequest(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	txn, err := h.wallet.Withdraw(c.Request.Context(), actor.AccountID, amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// ============================================================================
// ADMIN
// ============================================================================

// Adjust credits or debits an account
// POST /api/v1/admin/wallet/adjust
func (h *WalletHandler) Adjust(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.AdjustmentRequest
	if !h.bindWalletRequest(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	txn, err := h.wallet.ManualAdjustment(c.Request.Context(), actor, uuid.MustParse(req.UserID), amount, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// Deposit records money received for an account outside the app
// POST /api/v1/admin/wallet/deposit
func (h *WalletHandler) Deposit(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.DepositRequest
	if !h.bindWalletRequest(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	txn, err := h.wallet.Deposit(c.Request.Context(), actor, uuid.MustParse(req.UserID), amount, req.PaymentMethod)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// Reconcile compares an account's cached balance with its ledger and repairs drift
// POST /api/v1/admin/wallet/:user_id/reconcile
func (h *WalletHandler) Reconcile(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}

	check, err := h.wallet.ReconcileBalance(c.Request.Context(), actor, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// BalanceCheck compares an account's cached balance with its ledger without changing it
// GET /api/v1/admin/wallet/:user_id/balance-check
func (h *WalletHandler) BalanceCheck(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}

	check, err := h.wallet.VerifyBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, check)
}
