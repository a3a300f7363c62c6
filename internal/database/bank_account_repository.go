package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/models"
)

const bankAccountColumns = `
	id, host_id, bank_name, account_holder_name, account_number_sealed, account_last4,
	ifsc_code, branch_name, is_primary, is_verified, created_at, updated_at`

// BankAccountRepository handles host payout accounts
type BankAccountRepository struct {
	db *sqlx.DB
}

// NewBankAccountRepository creates a new bank account repository
func NewBankAccountRepository(db *sqlx.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

// Create inserts a bank account
func (r *BankAccountRepository) Create(ctx context.Context, a *models.HostBankAccount) error {
	query := `
		INSERT INTO host_bank_accounts (
			id, host_id, bank_name, account_holder_name, account_number_sealed,
			account_last4, ifsc_code, branch_name, is_primary, is_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		a.ID, a.HostID, a.BankName, a.AccountHolderName, a.AccountNumber,
		a.AccountLast4, a.IFSCCode, a.BranchName, a.IsPrimary, a.IsVerified,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bank account: %w", err)
	}
	return nil
}

// ListByHost returns a host's accounts, primary first
func (r *BankAccountRepository) ListByHost(ctx context.Context, hostID uuid.UUID) ([]*models.HostBankAccount, error) {
	var accounts []*models.HostBankAccount
	err := conn(ctx, r.db).SelectContext(ctx, &accounts,
		`SELECT `+bankAccountColumns+` FROM host_bank_accounts WHERE host_id = $1 ORDER BY is_primary DESC, created_at`,
		hostID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	return accounts, nil
}

// GetForUpdate retrieves and locks an account belonging to the host
func (r *BankAccountRepository) GetForUpdate(ctx context.Context, hostID, id uuid.UUID) (*models.HostBankAccount, error) {
	var a models.HostBankAccount
	err := conn(ctx, r.db).GetContext(ctx, &a,
		`SELECT `+bankAccountColumns+` FROM host_bank_accounts WHERE id = $1 AND host_id = $2 FOR UPDATE`,
		id, hostID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBankAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}
	return &a, nil
}

// GetPrimary retrieves the host's primary account
func (r *BankAccountRepository) GetPrimary(ctx context.Context, hostID uuid.UUID) (*models.HostBankAccount, error) {
	var a models.HostBankAccount
	err := conn(ctx, r.db).GetContext(ctx, &a,
		`SELECT `+bankAccountColumns+` FROM host_bank_accounts WHERE host_id = $1 AND is_primary`,
		hostID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoPrimaryBankAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary bank account: %w", err)
	}
	return &a, nil
}

// CountByHost counts a host's accounts
func (r *BankAccountRepository) CountByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	var count int
	err := conn(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM host_bank_accounts WHERE host_id = $1`, hostID)
	if err != nil {
		return 0, fmt.Errorf("failed to count bank accounts: %w", err)
	}
	return count, nil
}

// ClearPrimary demotes the host's current primary account
func (r *BankAccountRepository) ClearPrimary(ctx context.Context, hostID uuid.UUID) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE host_bank_accounts SET is_primary = FALSE, updated_at = NOW() WHERE host_id = $1 AND is_primary`,
		hostID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear primary bank account: %w", err)
	}
	return nil
}

// MarkPrimary promotes one account
func (r *BankAccountRepository) MarkPrimary(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE host_bank_accounts SET is_primary = TRUE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark primary bank account: %w", err)
	}
	return nil
}

// PromoteOldest makes the host's oldest remaining account primary
func (r *BankAccountRepository) PromoteOldest(ctx context.Context, hostID uuid.UUID) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE host_bank_accounts SET is_primary = TRUE, updated_at = NOW()
		WHERE id = (
			SELECT id FROM host_bank_accounts WHERE host_id = $1 ORDER BY created_at LIMIT 1
		)`,
		hostID,
	)
	if err != nil {
		return fmt.Errorf("failed to promote bank account: %w", err)
	}
	return nil
}

// MarkVerified flags an account as verified
func (r *BankAccountRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE host_bank_accounts SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to verify bank account: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return models.ErrBankAccountNotFound
	}
	return nil
}

// Delete removes an account
func (r *BankAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM host_bank_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bank account: %w", err)
	}
	return nil
}
