package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var userRowColumns = []string{"id", "username", "email", "phone", "role", "wallet_balance", "created_at", "updated_at"}

func TestUserRepositoryGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(userID.String(), "asha", "asha@example.com", "9876543210", "user", "1250.50", now, now))

		user, err := repo.GetByID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, models.RoleUser, user.Role)
		assert.True(t, user.WalletBalance.Equal(decimal.RequireFromString("1250.50")))
		require.NotNil(t, user.Phone)
		assert.Equal(t, "9876543210", *user.Phone)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		user, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
		assert.Nil(t, user)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WillReturnError(fmt.Errorf("connection reset"))

		_, err := repo.GetByID(ctx, uuid.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get user")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepositoryGetForUpdateLocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(userID.String(), "ravi", "ravi@example.com", nil, "host", "0", now, now))

	user, err := repo.GetForUpdate(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, user.Phone)
	assert.Equal(t, models.RoleHost, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateWalletBalance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()
		mock.ExpectExec(`UPDATE users SET wallet_balance`).
			WithArgs(userID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateWalletBalance(ctx, userID, decimal.NewFromInt(500))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Account", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users SET wallet_balance`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateWalletBalance(ctx, uuid.New(), decimal.NewFromInt(500))
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepositoryGetHostByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		hostID := uuid.New()
		userID := uuid.New()
		mock.ExpectQuery(`FROM hosts WHERE user_id = \$1`).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "company_name", "phone", "is_verified", "created_at"}).
				AddRow(hostID.String(), userID.String(), "Ravi Rentals", nil, true, time.Now()))

		host, err := repo.GetHostByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, hostID, host.ID)
		assert.True(t, host.IsVerified)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not A Host", func(t *testing.T) {
		mock.ExpectQuery(`FROM hosts WHERE user_id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "company_name", "phone", "is_verified", "created_at"}))

		_, err := repo.GetHostByUserID(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrHostNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
