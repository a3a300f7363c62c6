package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/shopspring/decimal"
)

const bookingColumns = `
	id, booking_reference, user_id, car_id, start_date, end_date, total_price, status,
	started_at, completed_at,
	payment_status, payment_order_id, payment_id, payment_date,
	cancelled_by, cancellation_reason, cancellation_fee_deducted, refund_amount, cancelled_at,
	has_extension_request, extension_new_end_date, extension_additional_days,
	extension_additional_price, extension_status, extension_host_approval,
	extension_host_approval_at, extension_payment_status, extension_payment_order_id,
	extension_payment_id, extension_payment_date, extension_paid_total,
	created_at, updated_at`

// Postgres exclusion_violation, raised by bookings_no_overlap
const exclusionViolation = "23P01"

// BookingRepository handles booking persistence. Every write recomputes
// total_price from the window and the car's hourly rate.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ============================================================================
// REFERENCE GENERATION
// ============================================================================

// GenerateBookingReference generates a unique booking reference
// Format: CR-YYYYMMDD-XXXXXX
func (r *BookingRepository) GenerateBookingReference(ctx context.Context) (string, error) {
	todayStr := time.Now().UTC().Format("20060102")

	for attempts := 0; attempts < 10; attempts++ {
		randomBytes := make([]byte, 3)
		if _, err := rand.Read(randomBytes); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		ref := fmt.Sprintf("CR-%s-%s", todayStr, strings.ToUpper(hex.EncodeToString(randomBytes)))

		var count int
		err := conn(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, ref)
		if err != nil {
			return "", fmt.Errorf("failed to check reference uniqueness: %w", err)
		}
		if count == 0 {
			return ref, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique booking reference after 10 attempts")
}

// ============================================================================
// WRITES
// ============================================================================

// Create inserts a new booking priced at the car's rate
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking, pricePerHour decimal.Decimal) error {
	b.RecomputeTotalPrice(pricePerHour)
	if !b.HasValidStatusCombination() {
		return models.ErrInvalidStateCombination
	}

	if b.BookingReference == "" {
		ref, err := r.GenerateBookingReference(ctx)
		if err != nil {
			return err
		}
		b.BookingReference = ref
	}

	query := `
		INSERT INTO bookings (
			id, booking_reference, user_id, car_id, start_date, end_date, total_price,
			status, payment_status, extension_status, extension_payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		b.ID, b.BookingReference, b.UserID, b.CarID, b.StartDate, b.EndDate, b.TotalPrice,
		b.Status, b.PaymentStatus, b.ExtensionStatus, b.ExtensionPaymentStatus,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if isExclusionViolation(err) {
		return models.ErrSlotUnavailable
	}
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// Update persists every mutable column of the booking
func (r *BookingRepository) Update(ctx context.Context, b *models.Booking, pricePerHour decimal.Decimal) error {
	b.RecomputeTotalPrice(pricePerHour)
	if !b.HasValidStatusCombination() {
		return models.ErrInvalidStateCombination
	}

	query := `
		UPDATE bookings SET
			start_date = $2, end_date = $3, total_price = $4, status = $5,
			started_at = $6, completed_at = $7,
			payment_status = $8, payment_order_id = $9, payment_id = $10, payment_date = $11,
			cancelled_by = $12, cancellation_reason = $13, cancellation_fee_deducted = $14,
			refund_amount = $15, cancelled_at = $16,
			has_extension_request = $17, extension_new_end_date = $18, extension_additional_days = $19,
			extension_additional_price = $20, extension_status = $21, extension_host_approval = $22,
			extension_host_approval_at = $23, extension_payment_status = $24,
			extension_payment_order_id = $25, extension_payment_id = $26,
			extension_payment_date = $27, extension_paid_total = $28,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		b.ID, b.StartDate, b.EndDate, b.TotalPrice, b.Status,
		b.StartedAt, b.CompletedAt,
		b.PaymentStatus, b.PaymentOrderID, b.PaymentID, b.PaymentDate,
		b.CancelledBy, b.CancellationReason, b.CancellationFee,
		b.RefundAmount, b.CancelledAt,
		b.HasExtensionRequest, b.ExtensionNewEndDate, b.ExtensionAdditionalDays,
		b.ExtensionAdditionalPrice, b.ExtensionStatus, b.ExtensionHostApproval,
		b.ExtensionHostApprovalAt, b.ExtensionPaymentStatus,
		b.ExtensionPaymentOrderID, b.ExtensionPaymentID,
		b.ExtensionPaymentDate, b.ExtensionPaidTotal,
	).Scan(&b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrBookingNotFound
	}
	if isExclusionViolation(err) {
		return models.ErrSlotUnavailable
	}
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	return nil
}

// ============================================================================
// READS
// ============================================================================

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate retrieves a booking and locks its row
func (r *BookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

// GetByPaymentOrderForUpdate finds the booking owning a gateway order,
// either the initial payment or an extension payment, and locks it.
func (r *BookingRepository) GetByPaymentOrderForUpdate(ctx context.Context, orderID string) (*models.Booking, error) {
	return r.get(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE payment_order_id = $1 OR extension_payment_order_id = $1
		FOR UPDATE`,
		orderID,
	)
}

func (r *BookingRepository) get(ctx context.Context, query string, arg interface{}) (*models.Booking, error) {
	var b models.Booking
	err := conn(ctx, r.db).GetContext(ctx, &b, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// CountOverlapping counts calendar-holding bookings of the car that intersect
// [start, end). Touching windows do not count.
func (r *BookingRepository) CountOverlapping(ctx context.Context, carID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE car_id = $1
		AND status = ANY($2)
		AND start_date < $4
		AND end_date > $3
		AND ($5::uuid IS NULL OR id <> $5::uuid)`

	var count int
	err := conn(ctx, r.db).GetContext(ctx, &count, query, carID, pq.Array(blockingStatuses()), start, end, excludeID)
	if err != nil {
		return 0, fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	return count, nil
}

// ListByUser returns a user's bookings, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := conn(ctx, r.db).SelectContext(ctx, &bookings,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY start_date DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}
	return bookings, nil
}

// ListByHost returns bookings of all cars owned by a host, newest first
func (r *BookingRepository) ListByHost(ctx context.Context, hostID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := conn(ctx, r.db).SelectContext(ctx, &bookings,
		`SELECT `+prefixed("b", bookingColumns)+` FROM bookings b
		JOIN cars c ON c.id = b.car_id
		WHERE c.host_id = $1
		ORDER BY b.start_date DESC LIMIT $2 OFFSET $3`,
		hostID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list host bookings: %w", err)
	}
	return bookings, nil
}

const tripSummarySelect = `
	SELECT b.id AS booking_id, b.booking_reference, b.status, b.user_id, h.user_id AS host_user_id,
		c.make AS car_make, c.model AS car_model, b.start_date, b.end_date
	FROM bookings b
	JOIN cars c ON c.id = b.car_id
	JOIN hosts h ON h.id = c.host_id`

// ListStartingBetween returns trips in the given statuses starting in [from, to]
func (r *BookingRepository) ListStartingBetween(ctx context.Context, from, to time.Time, statuses []models.BookingStatus) ([]*models.TripSummary, error) {
	var trips []*models.TripSummary
	err := conn(ctx, r.db).SelectContext(ctx, &trips,
		tripSummarySelect+` WHERE b.status = ANY($1) AND b.start_date BETWEEN $2 AND $3 ORDER BY b.start_date`,
		pq.Array(statusStrings(statuses)), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming trips: %w", err)
	}
	return trips, nil
}

// ListEndingBetween returns trips in the given statuses ending in [from, to]
func (r *BookingRepository) ListEndingBetween(ctx context.Context, from, to time.Time, statuses []models.BookingStatus) ([]*models.TripSummary, error) {
	var trips []*models.TripSummary
	err := conn(ctx, r.db).SelectContext(ctx, &trips,
		tripSummarySelect+` WHERE b.status = ANY($1) AND b.end_date BETWEEN $2 AND $3 ORDER BY b.end_date`,
		pq.Array(statusStrings(statuses)), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ending trips: %w", err)
	}
	return trips, nil
}

func blockingStatuses() []string {
	return statusStrings(models.BlockingStatuses)
}

func statusStrings(statuses []models.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// prefixed qualifies a comma separated column list with a table alias
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func isExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == exclusionViolation
}
