package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/database"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WalletService is the only writer of wallet balances. Every balance change is
// an immutable ledger row written in the same transaction as the cached balance.
type WalletService struct {
	tx       database.Transactor
	accounts AccountStore
	ledger   LedgerStore
	banks    BankAccountStore
	logger   *logrus.Logger
}

// NewWalletService creates a new WalletService
func NewWalletService(
	tx database.Transactor,
	accounts AccountStore,
	ledger LedgerStore,
	banks BankAccountStore,
	logger *logrus.Logger,
) *WalletService {
	return &WalletService{
		tx:       tx,
		accounts: accounts,
		ledger:   ledger,
		banks:    banks,
		logger:   logger,
	}
}

// RecordTransaction appends a ledger row and moves the cached balance. It joins
// the caller's transaction when ctx carries one.
func (s *WalletService) RecordTransaction(ctx context.Context, params models.TransactionParams) (*models.WalletTransaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var txn *models.WalletTransaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetForUpdate(ctx, params.UserID)
		if err != nil {
			return err
		}

		txn = &models.WalletTransaction{
			ID:              uuid.New(),
			UserID:          account.ID,
			TransactionType: params.Type,
			Amount:          params.Amount,
			Description:     params.Description,
		}
		if params.ReferenceType != "" {
			refType := params.ReferenceType
			txn.ReferenceType = &refType
		}
		if params.ReferenceID != "" {
			refID := params.ReferenceID
			txn.ReferenceID = &refID
		}
		txn.BalanceAfter = account.WalletBalance.Add(txn.SignedAmount())

		if err := s.ledger.Insert(ctx, txn); err != nil {
			return err
		}
		return s.accounts.UpdateWalletBalance(ctx, account.ID, txn.BalanceAfter)
	})
	if err != nil {
		return nil, err
	}

	ledgerEntries.WithLabelValues(string(txn.TransactionType)).Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id":        txn.UserID,
		"type":           txn.TransactionType,
		"amount":         txn.Amount.StringFixed(2),
		"balance_after":  txn.BalanceAfter.StringFixed(2),
		"reference_type": params.ReferenceType,
		"reference_id":   params.ReferenceID,
	}).Info("Wallet transaction recorded")

	return txn, nil
}

// ============================================================================
// BOOKING PRESETS
// ============================================================================

// recordOnce writes the entry unless the account already holds one with the
// same reference. Earnings are paid once per booking.
func (s *WalletService) recordOnce(ctx context.Context, params models.TransactionParams) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.ledger.ExistsForReference(ctx, params.UserID, params.ReferenceType, params.ReferenceID)
		if err != nil {
			return err
		}
		if exists {
			return models.NewGuardError("record_"+string(params.ReferenceType), "already recorded for this booking")
		}
		txn, err = s.RecordTransaction(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// RecordHostEarning credits the host's share of a completed trip
func (s *WalletService) RecordHostEarning(ctx context.Context, hostUserID uuid.UUID, b *models.Booking, amount decimal.Decimal) (*models.WalletTransaction, error) {
	return s.recordOnce(ctx, models.TransactionParams{
		UserID:        hostUserID,
		Amount:        amount,
		Type:          models.TransactionEarning,
		Description:   fmt.Sprintf("Earning from booking %s", b.BookingReference),
		ReferenceType: models.ReferenceHostEarning,
		ReferenceID:   b.ID.String(),
	})
}

// RecordExtensionEarning credits the host's share of paid extensions
func (s *WalletService) RecordExtensionEarning(ctx context.Context, hostUserID uuid.UUID, b *models.Booking, amount decimal.Decimal) (*models.WalletTransaction, error) {
	return s.recordOnce(ctx, models.TransactionParams{
		UserID:        hostUserID,
		Amount:        amount,
		Type:          models.TransactionEarning,
		Description:   fmt.Sprintf("Extension earning from booking %s", b.BookingReference),
		ReferenceType: models.ReferenceExtensionEarning,
		ReferenceID:   b.ID.String(),
	})
}

// RecordEarningReversal debits the host the full booking total on cancellation.
// The balance may go negative.
func (s *WalletService) RecordEarningReversal(ctx context.Context, hostUserID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error) {
	return s.RecordTransaction(ctx, models.TransactionParams{
		UserID:        hostUserID,
		Amount:        b.TotalPrice,
		Type:          models.TransactionDeduction,
		Description:   fmt.Sprintf("Booking %s cancelled", b.BookingReference),
		ReferenceType: models.ReferenceBookingCancellation,
		ReferenceID:   b.ID.String(),
	})
}

// RecordCancellationFee credits the host the fee kept from a user cancellation
func (s *WalletService) RecordCancellationFee(ctx context.Context, hostUserID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error) {
	return s.RecordTransaction(ctx, models.TransactionParams{
		UserID:        hostUserID,
		Amount:        b.CancellationFee,
		Type:          models.TransactionEarning,
		Description:   fmt.Sprintf("Cancellation fee for booking %s", b.BookingReference),
		ReferenceType: models.ReferenceCancellationFee,
		ReferenceID:   b.ID.String(),
	})
}

// RecordRefund credits the user the refundable part of a cancelled booking
func (s *WalletService) RecordRefund(ctx context.Context, userID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error) {
	return s.RecordTransaction(ctx, models.TransactionParams{
		UserID:        userID,
		Amount:        b.RefundAmount,
		Type:          models.TransactionRefund,
		Description:   fmt.Sprintf("Refund for booking %s", b.BookingReference),
		ReferenceType: models.ReferenceBookingRefund,
		ReferenceID:   b.ID.String(),
	})
}

// ============================================================================
// ACCOUNT OPERATIONS
// ============================================================================

// Deposit records money an admin received for an account outside the app,
// such as a bank transfer. Accounts cannot credit themselves.
func (s *WalletService) Deposit(ctx context.Context, admin models.Actor, userID uuid.UUID, amount decimal.Decimal, method string) (*models.WalletTransaction, error) {
	if !admin.IsAdmin() {
		return nil, models.ErrForbidden
	}
	description := "Wallet deposit"
	if method != "" {
		description = fmt.Sprintf("Wallet deposit via %s", method)
	}
	return s.RecordTransaction(ctx, models.TransactionParams{
		UserID:        userID,
		Amount:        amount,
		Type:          models.TransactionDeposit,
		Description:   description,
		ReferenceType: models.ReferenceDeposit,
		ReferenceID:   admin.AccountID.String(),
	})
}

// Withdraw pays a host out to their primary bank account. The balance must
// cover the amount.
func (s *WalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount", "amount must be greater than zero")
	}

	host, err := s.accounts.GetHostByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	primary, err := s.banks.GetPrimary(ctx, host.ID)
	if err != nil {
		return nil, err
	}

	var txn *models.WalletTransaction
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if account.WalletBalance.LessThan(amount) {
			return models.ErrInsufficientBalance
		}

		txn, err = s.RecordTransaction(ctx, models.TransactionParams{
			UserID:        userID,
			Amount:        amount,
			Type:          models.TransactionWithdrawal,
			Description:   fmt.Sprintf("Withdrawal to %s account ending %s", primary.BankName, primary.AccountLast4),
			ReferenceType: models.ReferenceWithdrawal,
			ReferenceID:   primary.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ManualAdjustment lets an admin correct a balance. A positive amount is
// credited as a deposit, a negative amount debited as a deduction.
func (s *WalletService) ManualAdjustment(ctx context.Context, admin models.Actor, userID uuid.UUID, amount decimal.Decimal, reason string) (*models.WalletTransaction, error) {
	if !admin.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if amount.IsZero() {
		return nil, models.NewValidationError("amount", "adjustment cannot be zero")
	}

	txType := models.TransactionDeposit
	if amount.IsNegative() {
		txType = models.TransactionDeduction
	}

	return s.RecordTransaction(ctx, models.TransactionParams{
		UserID:        userID,
		Amount:        amount.Abs(),
		Type:          txType,
		Description:   fmt.Sprintf("Manual Adjustment by %s: %s", admin.AccountID, reason),
		ReferenceType: models.ReferenceAdminAdjustment,
		ReferenceID:   admin.AccountID.String(),
	})
}

// GetWallet returns the balance with the most recent ledger rows
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID, limit, offset int) (*models.WalletSummary, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.ledger.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []*models.WalletTransaction{}
	}
	return &models.WalletSummary{
		UserID:       account.ID,
		Balance:      account.WalletBalance,
		Transactions: txns,
	}, nil
}

// VerifyBalance compares the cached balance with the ledger sum
func (s *WalletService) VerifyBalance(ctx context.Context, userID uuid.UUID) (*models.BalanceCheck, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := s.ledger.SumSigned(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceCheck{
		UserID:        account.ID,
		CachedBalance: account.WalletBalance,
		LedgerBalance: sum,
		Consistent:    account.WalletBalance.Equal(sum),
	}, nil
}

// ReconcileBalance resets the cached balance to the ledger sum when they drift
func (s *WalletService) ReconcileBalance(ctx context.Context, admin models.Actor, userID uuid.UUID) (*models.BalanceCheck, error) {
	if !admin.IsAdmin() {
		return nil, models.ErrForbidden
	}

	var check *models.BalanceCheck
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := s.ledger.SumSigned(ctx, userID)
		if err != nil {
			return err
		}
		check = &models.BalanceCheck{
			UserID:        account.ID,
			CachedBalance: account.WalletBalance,
			LedgerBalance: sum,
			Consistent:    account.WalletBalance.Equal(sum),
		}
		if check.Consistent {
			return nil
		}
		return s.accounts.UpdateWalletBalance(ctx, account.ID, sum)
	})
	if err != nil {
		return nil, err
	}

	if !check.Consistent {
		s.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"cached":  check.CachedBalance.StringFixed(2),
			"ledger":  check.LedgerBalance.StringFixed(2),
			"admin":   admin.AccountID,
		}).Warn("Wallet balance drift corrected")
	}
	return check, nil
}
