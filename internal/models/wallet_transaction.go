package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry as a credit or a debit
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionEarning    TransactionType = "earning"
	TransactionDeduction  TransactionType = "deduction"
	TransactionRefund     TransactionType = "refund"
	TransactionBonus      TransactionType = "bonus"
	TransactionPenalty    TransactionType = "penalty"
)

// IsValid checks if the type is a known ledger type
func (t TransactionType) IsValid() bool {
	return t.IsCredit() || t.IsDebit()
}

// IsCredit reports whether the type increases the balance
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionDeposit, TransactionEarning, TransactionRefund, TransactionBonus:
		return true
	}
	return false
}

// IsDebit reports whether the type decreases the balance
func (t TransactionType) IsDebit() bool {
	switch t {
	case TransactionWithdrawal, TransactionDeduction, TransactionPenalty:
		return true
	}
	return false
}

// ReferenceType identifies what a ledger entry points at
type ReferenceType string

const (
	ReferenceBookingRefund       ReferenceType = "booking_refund"
	ReferenceBookingCancellation ReferenceType = "booking_cancellation"
	ReferenceHostEarning         ReferenceType = "host_earning"
	ReferenceExtensionEarning    ReferenceType = "extension_earning"
	ReferenceCancellationFee     ReferenceType = "cancellation_fee"
	ReferenceAdminAdjustment     ReferenceType = "admin_adjustment"
	ReferenceDeposit             ReferenceType = "deposit"
	ReferenceWithdrawal          ReferenceType = "withdrawal"
)

// MaxDescriptionLength bounds ledger descriptions
const MaxDescriptionLength = 255

// WalletTransaction is an immutable ledger row
type WalletTransaction struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	TransactionType TransactionType `json:"transaction_type" db:"transaction_type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after" db:"balance_after"`
	Description     string          `json:"description" db:"description"`
	ReferenceType   *ReferenceType  `json:"reference_type,omitempty" db:"reference_type"`
	ReferenceID     *string         `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// SignedAmount is positive for credits and negative for debits
func (t *WalletTransaction) SignedAmount() decimal.Decimal {
	if t.TransactionType.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// TransactionParams are the inputs of a single ledger write
type TransactionParams struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Type          TransactionType
	Description   string
	ReferenceType ReferenceType
	ReferenceID   string
}

// Validate checks the ledger write inputs and normalizes them
func (p *TransactionParams) Validate() error {
	if p.UserID == uuid.Nil {
		return NewValidationError("user_id", "account is required")
	}
	p.Amount = p.Amount.Round(2)
	if !p.Amount.IsPositive() {
		return NewValidationError("amount", "amount must be at least 0.01")
	}
	if !p.Type.IsValid() {
		return NewValidationError("transaction_type", "unknown transaction type "+string(p.Type))
	}
	p.Description = strings.TrimSpace(p.Description)
	if p.Description == "" {
		return NewValidationError("description", "description is required")
	}
	p.Description = TruncateText(p.Description, MaxDescriptionLength)
	return nil
}

// WalletSummary is the balance view returned to clients
type WalletSummary struct {
	UserID       uuid.UUID            `json:"user_id"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []*WalletTransaction `json:"transactions"`
}

// BalanceCheck compares the cached balance against the ledger sum
type BalanceCheck struct {
	UserID        uuid.UUID       `json:"user_id"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Consistent    bool            `json:"consistent"`
}

// DepositRequest records money received for an account outside the app
type DepositRequest struct {
	UserID        string `json:"user_id" validate:"required,uuid"`
	Amount        string `json:"amount" validate:"required,numeric"`
	PaymentMethod string `json:"payment_method" validate:"required,max=50"`
}

// WithdrawalRequest represents a payout request to the primary bank account
type WithdrawalRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

// AdjustmentRequest represents an admin balance correction
type AdjustmentRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Amount string `json:"amount" validate:"required,numeric"`
	Reason string `json:"reason" validate:"required,max=200"`
}
