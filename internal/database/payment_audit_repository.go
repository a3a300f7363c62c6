package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log writes an audit entry on the pool, never inside the caller's
// transaction, so a rolled back transition still leaves its trail.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, purpose, order_id, payment_id,
			event_type, event_source, amount, currency,
			details, error_message, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.Purpose, audit.OrderID, audit.PaymentID,
		audit.EventType, audit.EventSource, audit.Amount, audit.Currency,
		audit.Details, audit.ErrorMessage, audit.IPAddress, audit.UserAgent, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"order_id":   audit.OrderID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"order_id":   audit.OrderID,
	}).Debug("Payment audit logged")

	return nil
}

// ListByOrder retrieves every audit entry for a gateway order
func (r *PaymentAuditRepository) ListByOrder(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	err := r.db.SelectContext(ctx, &audits, `
		SELECT id, booking_id, purpose, order_id, payment_id, event_type, event_source,
			amount, currency, details, error_message, ip_address, user_agent, created_at
		FROM payment_audits
		WHERE order_id = $1
		ORDER BY created_at ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by order: %w", err)
	}
	return audits, nil
}
