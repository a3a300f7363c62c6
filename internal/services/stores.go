package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/shopspring/decimal"
)

// Storage contracts the services depend on. The postgres repositories in
// internal/database satisfy them.

// BookingStore persists bookings
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking, pricePerHour decimal.Decimal) error
	Update(ctx context.Context, b *models.Booking, pricePerHour decimal.Decimal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByPaymentOrderForUpdate(ctx context.Context, orderID string) (*models.Booking, error)
	CountOverlapping(ctx context.Context, carID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Booking, error)
	ListByHost(ctx context.Context, hostID uuid.UUID, limit, offset int) ([]*models.Booking, error)
}

// TripLister feeds the reminder jobs
type TripLister interface {
	ListStartingBetween(ctx context.Context, from, to time.Time, statuses []models.BookingStatus) ([]*models.TripSummary, error)
	ListEndingBetween(ctx context.Context, from, to time.Time, statuses []models.BookingStatus) ([]*models.TripSummary, error)
}

// CarStore reads cars
type CarStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Car, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Car, error)
}

// AccountStore reads accounts and hosts and stores the cached wallet balance
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateWalletBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	ListIDsByRole(ctx context.Context, role models.AccountRole) ([]uuid.UUID, error)
	GetHostByUserID(ctx context.Context, userID uuid.UUID) (*models.Host, error)
}

// LedgerStore is the append-only wallet ledger
type LedgerStore interface {
	Insert(ctx context.Context, txn *models.WalletTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, error)
	SumSigned(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ExistsForReference(ctx context.Context, userID uuid.UUID, refType models.ReferenceType, refID string) (bool, error)
}

// FeedbackLookup answers whether a booking was already rated or reviewed
type FeedbackLookup interface {
	HasRating(ctx context.Context, bookingID uuid.UUID) (bool, error)
	HasFeedback(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// FeedbackStore writes ratings and feedback
type FeedbackStore interface {
	FeedbackLookup
	CreateRating(ctx context.Context, rating *models.HostRating) error
	CreateFeedback(ctx context.Context, fb *models.HostFeedback) error
	AverageRating(ctx context.Context, hostID uuid.UUID) (float64, int, error)
}

// BankAccountStore persists host payout accounts
type BankAccountStore interface {
	Create(ctx context.Context, a *models.HostBankAccount) error
	ListByHost(ctx context.Context, hostID uuid.UUID) ([]*models.HostBankAccount, error)
	GetForUpdate(ctx context.Context, hostID, id uuid.UUID) (*models.HostBankAccount, error)
	GetPrimary(ctx context.Context, hostID uuid.UUID) (*models.HostBankAccount, error)
	CountByHost(ctx context.Context, hostID uuid.UUID) (int, error)
	ClearPrimary(ctx context.Context, hostID uuid.UUID) error
	MarkPrimary(ctx context.Context, id uuid.UUID) error
	PromoteOldest(ctx context.Context, hostID uuid.UUID) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// NotificationStore persists in-app notifications
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PaymentAuditLogger records payment events
type PaymentAuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}
