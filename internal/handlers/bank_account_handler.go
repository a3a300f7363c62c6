package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BankAccountHandler manages host payout accounts
type BankAccountHandler struct {
	accounts *services.BankAccountService
	logger   *logrus.Logger
}

// NewBankAccountHandler creates a new BankAccountHandler
func NewBankAccountHandler(accounts *services.BankAccountService, logger *logrus.Logger) *BankAccountHandler {
	return &BankAccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// List returns the host's accounts with masked numbers
// GET /api/v1/host/bank-accounts
func (h *BankAccountHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	views, err := h.accounts.List(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bank_accounts": views})
}

// Add stores a new payout account
// POST /api/v1/host/bank-accounts
func (h *BankAccountHandler) Add(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.AddBankAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.accounts.Add(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// SetPrimary switches the payout destination
// PUT /api/v1/host/bank-accounts/:id/primary
func (h *BankAccountHandler) SetPrimary(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.accounts.SetPrimary(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Primary bank account updated"})
}

// Remove deletes an account
// DELETE /api/v1/host/bank-accounts/:id
func (h *BankAccountHandler) Remove(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.accounts.Remove(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bank account removed"})
}

// Verify marks an account verified
// POST /api/v1/admin/bank-accounts/:id/verify
func (h *BankAccountHandler) Verify(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.accounts.Verify(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bank account verified"})
}
