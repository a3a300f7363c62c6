package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/shopspring/decimal"
)

// WalletRepository handles the append-only wallet ledger
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Insert appends a ledger row
func (r *WalletRepository) Insert(ctx context.Context, txn *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (
			id, user_id, transaction_type, amount, balance_after,
			description, reference_type, reference_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		txn.ID, txn.UserID, txn.TransactionType, txn.Amount, txn.BalanceAfter,
		txn.Description, txn.ReferenceType, txn.ReferenceID,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert wallet transaction: %w", err)
	}
	return nil
}

// ListByUser returns ledger rows for an account, newest first
func (r *WalletRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, error) {
	var txns []*models.WalletTransaction
	err := conn(ctx, r.db).SelectContext(ctx, &txns, `
		SELECT id, user_id, transaction_type, amount, balance_after,
			description, reference_type, reference_id, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txns, nil
}

// SumSigned returns the ledger balance: credits minus debits
func (r *WalletRepository) SumSigned(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := conn(ctx, r.db).GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(
			CASE WHEN transaction_type IN ('withdrawal', 'deduction', 'penalty') THEN -amount ELSE amount END
		), 0)
		FROM wallet_transactions
		WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum wallet transactions: %w", err)
	}
	return sum, nil
}

// ExistsForReference reports whether a ledger row already points at the reference
func (r *WalletRepository) ExistsForReference(ctx context.Context, userID uuid.UUID, refType models.ReferenceType, refID string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_transactions
			WHERE user_id = $1 AND reference_type = $2 AND reference_id = $3
		)`,
		userID, refType, refID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check wallet reference: %w", err)
	}
	return exists, nil
}
