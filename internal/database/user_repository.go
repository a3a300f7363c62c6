package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/shopspring/decimal"
)

const userColumns = `id, username, email, phone, role, wallet_balance, created_at, updated_at`

// UserRepository handles account and host lookups and the cached wallet balance
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves an account by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetForUpdate retrieves an account and locks its row until the transaction ends
func (r *UserRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateWalletBalance stores the cached balance. Only the wallet ledger calls this.
func (r *UserRepository) UpdateWalletBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET wallet_balance = $2, updated_at = NOW() WHERE id = $1`,
		id, balance,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// ListIDsByRole returns the IDs of every account with the role
func (r *UserRepository) ListIDsByRole(ctx context.Context, role models.AccountRole) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).SelectContext(ctx, &ids, `SELECT id FROM users WHERE role = $1 ORDER BY created_at`, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s accounts: %w", role, err)
	}
	return ids, nil
}

// GetHostByUserID retrieves the host profile linked to an account
func (r *UserRepository) GetHostByUserID(ctx context.Context, userID uuid.UUID) (*models.Host, error) {
	var host models.Host
	err := conn(ctx, r.db).GetContext(ctx, &host,
		`SELECT id, user_id, company_name, phone, is_verified, created_at FROM hosts WHERE user_id = $1`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrHostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return &host, nil
}
