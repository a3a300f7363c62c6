package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusExtended  BookingStatus = "extended"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus represents the status of the initial booking payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ExtensionStatus represents the negotiation state of a trip extension
type ExtensionStatus string

const (
	ExtensionStatusNone      ExtensionStatus = "none"
	ExtensionStatusRequested ExtensionStatus = "requested"
	ExtensionStatusApproved  ExtensionStatus = "approved"
	ExtensionStatusCancelled ExtensionStatus = "cancelled"
)

// ExtensionPaymentStatus represents the payment state of a trip extension
type ExtensionPaymentStatus string

const (
	ExtensionPaymentNone      ExtensionPaymentStatus = "none"
	ExtensionPaymentPending   ExtensionPaymentStatus = "pending"
	ExtensionPaymentCompleted ExtensionPaymentStatus = "completed"
	ExtensionPaymentFailed    ExtensionPaymentStatus = "failed"
)

// CancelledBy records which party cancelled a booking
type CancelledBy string

const (
	CancelledByUser  CancelledBy = "user"
	CancelledByHost  CancelledBy = "host"
	CancelledByAdmin CancelledBy = "admin"
)

// Booking policy
const (
	UserCancellationWindow = 6 * time.Hour
	HostCancellationWindow = 1 * time.Hour
	ExtensionLeadTime      = 6 * time.Hour
	MaxReasonLength        = 255
)

var (
	// CancellationFeeRate is the share of the total kept when a user cancels a paid booking
	CancellationFeeRate = decimal.RequireFromString("0.50")
	// HostEarningRate is the host's share of a completed trip
	HostEarningRate = decimal.RequireFromString("0.90")
)

// BlockingStatuses are the statuses that hold a car's calendar
var BlockingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusPaid,
	BookingStatusActive,
	BookingStatusExtended,
}

var hoursPerDay = decimal.NewFromInt(24)

// Booking is a reservation of one car by one user for a time window
type Booking struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	BookingReference string          `json:"booking_reference" db:"booking_reference"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	CarID            uuid.UUID       `json:"car_id" db:"car_id"`
	StartDate        time.Time       `json:"start_date" db:"start_date"`
	EndDate          time.Time       `json:"end_date" db:"end_date"`
	TotalPrice       decimal.Decimal `json:"total_price" db:"total_price"`
	Status           BookingStatus   `json:"status" db:"status"`
	StartedAt        *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" db:"completed_at"`

	// Payment
	PaymentStatus  PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentOrderID *string       `json:"payment_order_id,omitempty" db:"payment_order_id"`
	PaymentID      *string       `json:"payment_id,omitempty" db:"payment_id"`
	PaymentDate    *time.Time    `json:"payment_date,omitempty" db:"payment_date"`

	// Cancellation
	CancelledBy        *CancelledBy    `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancellationReason *string         `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancellationFee    decimal.Decimal `json:"cancellation_fee_deducted" db:"cancellation_fee_deducted"`
	RefundAmount       decimal.Decimal `json:"refund_amount" db:"refund_amount"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`

	// Extension
	HasExtensionRequest      bool                   `json:"has_extension_request" db:"has_extension_request"`
	ExtensionNewEndDate      *time.Time             `json:"extension_new_end_date,omitempty" db:"extension_new_end_date"`
	ExtensionAdditionalDays  int                    `json:"extension_additional_days" db:"extension_additional_days"`
	ExtensionAdditionalPrice decimal.Decimal        `json:"extension_additional_price" db:"extension_additional_price"`
	ExtensionStatus          ExtensionStatus        `json:"extension_status" db:"extension_status"`
	ExtensionHostApproval    bool                   `json:"extension_host_approval" db:"extension_host_approval"`
	ExtensionHostApprovalAt  *time.Time             `json:"extension_host_approval_at,omitempty" db:"extension_host_approval_at"`
	ExtensionPaymentStatus   ExtensionPaymentStatus `json:"extension_payment_status" db:"extension_payment_status"`
	ExtensionPaymentOrderID  *string                `json:"extension_payment_order_id,omitempty" db:"extension_payment_order_id"`
	ExtensionPaymentID       *string                `json:"extension_payment_id,omitempty" db:"extension_payment_id"`
	ExtensionPaymentDate     *time.Time             `json:"extension_payment_date,omitempty" db:"extension_payment_date"`
	ExtensionPaidTotal       decimal.Decimal        `json:"extension_paid_total" db:"extension_paid_total"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBooking creates a pending booking for the window [start, end)
func NewBooking(userID uuid.UUID, car *Car, start, end time.Time) (*Booking, error) {
	if err := ValidateWindow(start, end); err != nil {
		return nil, err
	}

	b := &Booking{
		ID:                     uuid.New(),
		UserID:                 userID,
		CarID:                  car.ID,
		StartDate:              start.UTC(),
		EndDate:                end.UTC(),
		Status:                 BookingStatusPending,
		PaymentStatus:          PaymentStatusPending,
		ExtensionStatus:        ExtensionStatusNone,
		ExtensionPaymentStatus: ExtensionPaymentNone,
	}
	b.RecomputeTotalPrice(car.PricePerHour)
	return b, nil
}

// ValidateWindow checks that a booking window is non-empty
func ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return NewValidationError("dates", "start_date and end_date are required")
	}
	if !end.After(start) {
		return NewValidationError("end_date", "end date must be after start date")
	}
	return nil
}

// ComputeTotalPrice prices a window at an hourly rate, rounded to paise
func ComputeTotalPrice(start, end time.Time, pricePerHour decimal.Decimal) decimal.Decimal {
	seconds := decimal.NewFromInt(int64(end.Sub(start) / time.Second))
	hours := seconds.Div(decimal.NewFromInt(3600))
	return hours.Mul(pricePerHour).Round(2)
}

// DurationHours returns the booked duration in fractional hours
func (b *Booking) DurationHours() decimal.Decimal {
	seconds := decimal.NewFromInt(int64(b.EndDate.Sub(b.StartDate) / time.Second))
	return seconds.Div(decimal.NewFromInt(3600))
}

// RecomputeTotalPrice derives total_price from the window and the car's rate
func (b *Booking) RecomputeTotalPrice(pricePerHour decimal.Decimal) {
	b.TotalPrice = ComputeTotalPrice(b.StartDate, b.EndDate, pricePerHour)
}

// Overlaps uses half-open intervals so back-to-back bookings do not collide
func (b *Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndDate) && end.After(b.StartDate)
}

// HoldsCalendar reports whether the booking blocks other bookings of the car
func (b *Booking) HoldsCalendar() bool {
	for _, s := range BlockingStatuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle transition is possible
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

// HasValidStatusCombination checks the (status, payment_status) pair
func (b *Booking) HasValidStatusCombination() bool {
	switch b.Status {
	case BookingStatusPending:
		return b.PaymentStatus == PaymentStatusPending || b.PaymentStatus == PaymentStatusFailed
	case BookingStatusPaid, BookingStatusActive, BookingStatusExtended, BookingStatusCompleted:
		return b.PaymentStatus == PaymentStatusCompleted
	case BookingStatusCancelled:
		return true
	}
	return false
}

// EffectiveEndDate is the paid extension end if one exists, else end_date
func (b *Booking) EffectiveEndDate() time.Time {
	if b.ExtensionPaymentStatus == ExtensionPaymentCompleted && b.ExtensionNewEndDate != nil && b.ExtensionNewEndDate.After(b.EndDate) {
		return *b.ExtensionNewEndDate
	}
	return b.EndDate
}

// hasStarted distinguishes an extended trip in progress from one extended before pickup
func (b *Booking) hasStarted() bool {
	return b.StartedAt != nil
}

// ============================================================================
// PAYMENT
// ============================================================================

// CanBePaid checks if the initial payment may be confirmed
func (b *Booking) CanBePaid() bool {
	return b.Status == BookingStatusPending && b.PaymentStatus == PaymentStatusPending
}

// CanAcceptPaymentOrder checks if a new gateway order may be created
func (b *Booking) CanAcceptPaymentOrder() bool {
	return b.Status == BookingStatusPending &&
		(b.PaymentStatus == PaymentStatusPending || b.PaymentStatus == PaymentStatusFailed)
}

// AttachPaymentOrder records a gateway order and reopens a failed payment
func (b *Booking) AttachPaymentOrder(orderID string) error {
	if !b.CanAcceptPaymentOrder() {
		return NewGuardError("create_payment_order", fmt.Sprintf("booking is %s with payment %s", b.Status, b.PaymentStatus))
	}
	b.PaymentOrderID = &orderID
	b.PaymentStatus = PaymentStatusPending
	return nil
}

// MarkAsPaid confirms the initial payment
func (b *Booking) MarkAsPaid(paymentID string, now time.Time) error {
	if !b.CanBePaid() {
		return NewGuardError("mark_as_paid", fmt.Sprintf("booking is %s with payment %s", b.Status, b.PaymentStatus))
	}
	paidAt := now.UTC()
	b.PaymentStatus = PaymentStatusCompleted
	b.PaymentDate = &paidAt
	b.PaymentID = &paymentID
	b.Status = BookingStatusPaid
	return nil
}

// MarkPaymentFailed records a failed attempt. A completed payment or a
// cancelled booking is never reopened.
func (b *Booking) MarkPaymentFailed(paymentID string) error {
	if b.PaymentStatus == PaymentStatusCompleted || b.Status == BookingStatusCancelled {
		return NewGuardError("mark_payment_failed", fmt.Sprintf("booking is %s with payment %s", b.Status, b.PaymentStatus))
	}
	if paymentID != "" {
		b.PaymentID = &paymentID
	}
	b.PaymentStatus = PaymentStatusFailed
	b.Status = BookingStatusPending
	return nil
}

// ============================================================================
// TRIP
// ============================================================================

// CanBeActivatedByUser checks if the user may start the trip
func (b *Booking) CanBeActivatedByUser(now time.Time) bool {
	startable := b.Status == BookingStatusPaid || (b.Status == BookingStatusExtended && !b.hasStarted())
	return startable && b.PaymentStatus == PaymentStatusCompleted && !now.Before(b.StartDate)
}

// ActivateTrip starts the trip
func (b *Booking) ActivateTrip(now time.Time) error {
	if !b.CanBeActivatedByUser(now) {
		if b.Status == BookingStatusPaid {
			return NewGuardError("activate_trip", "trip start time has not been reached")
		}
		return NewGuardError("activate_trip", fmt.Sprintf("booking is %s", b.Status))
	}
	startedAt := now.UTC()
	b.StartedAt = &startedAt
	b.Status = BookingStatusActive
	return nil
}

// CanBeCompletedByUser checks if the user may end the trip
func (b *Booking) CanBeCompletedByUser() bool {
	return b.Status == BookingStatusActive || (b.Status == BookingStatusExtended && b.hasStarted())
}

// CompleteTrip ends the trip
func (b *Booking) CompleteTrip(now time.Time) error {
	if !b.CanBeCompletedByUser() {
		return NewGuardError("complete_trip", fmt.Sprintf("booking is %s", b.Status))
	}
	completedAt := now.UTC()
	b.CompletedAt = &completedAt
	b.Status = BookingStatusCompleted
	b.closeOpenExtension()
	return nil
}

// HostEarnings splits the host's share of a completed trip into the base trip
// earning and the earning on merged extensions.
func (b *Booking) HostEarnings() (trip decimal.Decimal, extension decimal.Decimal) {
	base := b.TotalPrice.Sub(b.ExtensionPaidTotal)
	trip = base.Mul(HostEarningRate).Round(2)
	extension = b.ExtensionPaidTotal.Mul(HostEarningRate).Round(2)
	return trip, extension
}

// ============================================================================
// CANCELLATION
// ============================================================================

func (b *Booking) unpaid() bool {
	return b.Status == BookingStatusPending && b.PaymentStatus != PaymentStatusCompleted
}

func (b *Booking) paidAndBefore(now time.Time, window time.Duration) bool {
	return b.PaymentStatus == PaymentStatusCompleted &&
		b.Status == BookingStatusPaid &&
		b.StartDate.Sub(now) > window
}

// CanBeCancelledByUser checks the user cancellation policy
func (b *Booking) CanBeCancelledByUser(now time.Time) bool {
	return b.unpaid() || b.paidAndBefore(now, UserCancellationWindow)
}

// CanBeCancelledByHost checks the host cancellation policy
func (b *Booking) CanBeCancelledByHost(now time.Time) bool {
	return b.unpaid() || b.paidAndBefore(now, HostCancellationWindow)
}

// CanBeCancelledByAdmin allows any booking that has not started
func (b *Booking) CanBeCancelledByAdmin() bool {
	return b.unpaid() || (b.Status == BookingStatusPaid && b.PaymentStatus == PaymentStatusCompleted)
}

// IsPaid reports whether money was collected for the booking
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusCompleted
}

// CancelByUser cancels under the user policy. A paid booking keeps 50% as fee.
func (b *Booking) CancelByUser(reason string, now time.Time) error {
	if !b.CanBeCancelledByUser(now) {
		return NewGuardError("cancel_by_user", b.cancelDenial(now, UserCancellationWindow))
	}
	fee := decimal.Zero
	refund := decimal.Zero
	if b.IsPaid() {
		fee = b.TotalPrice.Mul(CancellationFeeRate).Round(2)
		refund = b.TotalPrice.Sub(fee)
	}
	b.applyCancellation(CancelledByUser, reason, fee, refund, now)
	return nil
}

// CancelByHost cancels under the host policy. The user is refunded in full.
func (b *Booking) CancelByHost(reason string, now time.Time) error {
	if !b.CanBeCancelledByHost(now) {
		return NewGuardError("cancel_by_host", b.cancelDenial(now, HostCancellationWindow))
	}
	refund := decimal.Zero
	if b.IsPaid() {
		refund = b.TotalPrice
	}
	b.applyCancellation(CancelledByHost, reason, decimal.Zero, refund, now)
	return nil
}

// CancelByAdmin cancels without a fee
func (b *Booking) CancelByAdmin(reason string, now time.Time) error {
	if !b.CanBeCancelledByAdmin() {
		return NewGuardError("cancel_by_admin", fmt.Sprintf("booking is %s", b.Status))
	}
	refund := decimal.Zero
	if b.IsPaid() {
		refund = b.TotalPrice
	}
	b.applyCancellation(CancelledByAdmin, reason, decimal.Zero, refund, now)
	return nil
}

func (b *Booking) cancelDenial(now time.Time, window time.Duration) string {
	switch {
	case b.IsTerminal():
		return fmt.Sprintf("booking is already %s", b.Status)
	case b.Status == BookingStatusActive || b.Status == BookingStatusExtended:
		return "trip has already started"
	case b.IsPaid() && b.StartDate.Sub(now) <= window:
		return fmt.Sprintf("cancellation closes %s before the trip starts", formatWindow(window))
	}
	return fmt.Sprintf("booking is %s with payment %s", b.Status, b.PaymentStatus)
}

func (b *Booking) applyCancellation(by CancelledBy, reason string, fee, refund decimal.Decimal, now time.Time) {
	cancelledAt := now.UTC()
	truncated := TruncateText(strings.TrimSpace(reason), MaxReasonLength)
	b.Status = BookingStatusCancelled
	b.CancelledBy = &by
	if truncated != "" {
		b.CancellationReason = &truncated
	}
	b.CancellationFee = fee
	b.RefundAmount = refund
	b.CancelledAt = &cancelledAt
	b.closeOpenExtension()
}

// ============================================================================
// EXTENSION
// ============================================================================

// HasOpenExtension reports an extension awaiting a decision or a payment
func (b *Booking) HasOpenExtension() bool {
	return b.ExtensionStatus == ExtensionStatusRequested ||
		(b.ExtensionStatus == ExtensionStatusApproved && b.ExtensionPaymentStatus != ExtensionPaymentCompleted)
}

// CanRequestExtension checks whether a new extension may be requested now
func (b *Booking) CanRequestExtension(now time.Time) (bool, string) {
	if b.PaymentStatus != PaymentStatusCompleted {
		return false, "booking has not been paid"
	}
	if b.Status != BookingStatusPaid && b.Status != BookingStatusActive && b.Status != BookingStatusExtended {
		return false, fmt.Sprintf("booking is %s", b.Status)
	}
	if b.HasOpenExtension() {
		return false, "an extension request is already open"
	}
	if b.EffectiveEndDate().Sub(now) < ExtensionLeadTime {
		return false, fmt.Sprintf("extensions must be requested at least %s before the trip ends", formatWindow(ExtensionLeadTime))
	}
	return true, ""
}

// RequestExtension opens an extension priced in whole days. The stored new end
// is the current end plus those whole days, which is exactly the billed window.
func (b *Booking) RequestExtension(newEnd time.Time, pricePerHour decimal.Decimal, now time.Time) error {
	if ok, reason := b.CanRequestExtension(now); !ok {
		return NewGuardError("request_extension", reason)
	}

	currentEnd := b.EffectiveEndDate()
	if !newEnd.After(currentEnd) {
		return NewValidationError("new_end_date", "new end date must be after the current end date")
	}

	days := int(newEnd.Sub(currentEnd) / (24 * time.Hour))
	if days < 1 {
		return NewValidationError("new_end_date", "extension must add at least one full day")
	}

	extendedEnd := currentEnd.Add(time.Duration(days) * 24 * time.Hour).UTC()
	b.HasExtensionRequest = true
	b.ExtensionNewEndDate = &extendedEnd
	b.ExtensionAdditionalDays = days
	b.ExtensionAdditionalPrice = decimal.NewFromInt(int64(days)).Mul(hoursPerDay).Mul(pricePerHour).Round(2)
	b.ExtensionStatus = ExtensionStatusRequested
	b.ExtensionHostApproval = false
	b.ExtensionHostApprovalAt = nil
	b.ExtensionPaymentStatus = ExtensionPaymentPending
	b.ExtensionPaymentOrderID = nil
	b.ExtensionPaymentID = nil
	b.ExtensionPaymentDate = nil
	return nil
}

// ApproveExtension records the host's approval. No money moves.
func (b *Booking) ApproveExtension(now time.Time) error {
	if b.ExtensionStatus != ExtensionStatusRequested {
		return NewGuardError("approve_extension", fmt.Sprintf("extension is %s", b.ExtensionStatus))
	}
	approvedAt := now.UTC()
	b.ExtensionStatus = ExtensionStatusApproved
	b.ExtensionHostApproval = true
	b.ExtensionHostApprovalAt = &approvedAt
	return nil
}

// RejectExtension clears every extension field
func (b *Booking) RejectExtension() error {
	if b.ExtensionStatus != ExtensionStatusRequested {
		return NewGuardError("reject_extension", fmt.Sprintf("extension is %s", b.ExtensionStatus))
	}
	b.clearExtension()
	return nil
}

// closeOpenExtension drops a requested or approved-but-unpaid extension when
// the booking ends. A merged extension is left as it is.
func (b *Booking) closeOpenExtension() {
	if !b.HasOpenExtension() {
		return
	}
	// a late gateway callback must still resolve to this booking
	orderID := b.ExtensionPaymentOrderID
	b.clearExtension()
	b.ExtensionPaymentOrderID = orderID
}

func (b *Booking) clearExtension() {
	b.HasExtensionRequest = false
	b.ExtensionNewEndDate = nil
	b.ExtensionAdditionalDays = 0
	b.ExtensionAdditionalPrice = decimal.Zero
	b.ExtensionStatus = ExtensionStatusCancelled
	b.ExtensionHostApproval = false
	b.ExtensionHostApprovalAt = nil
	b.ExtensionPaymentStatus = ExtensionPaymentNone
	b.ExtensionPaymentOrderID = nil
	b.ExtensionPaymentID = nil
	b.ExtensionPaymentDate = nil
}

// CanPayForExtension checks if an approved extension is awaiting payment on a
// booking that is still running
func (b *Booking) CanPayForExtension() bool {
	switch b.Status {
	case BookingStatusPaid, BookingStatusActive, BookingStatusExtended:
	default:
		return false
	}
	return b.ExtensionStatus == ExtensionStatusApproved && b.ExtensionPaymentStatus == ExtensionPaymentPending
}

// ExtensionPaymentDenial explains why CanPayForExtension is false
func (b *Booking) ExtensionPaymentDenial() string {
	if b.IsTerminal() || b.Status == BookingStatusPending {
		return fmt.Sprintf("booking is %s", b.Status)
	}
	return fmt.Sprintf("extension is %s with payment %s", b.ExtensionStatus, b.ExtensionPaymentStatus)
}

// AttachExtensionOrder records the gateway order for an extension payment
func (b *Booking) AttachExtensionOrder(orderID string) error {
	if !b.CanPayForExtension() {
		return NewGuardError("create_extension_order", b.ExtensionPaymentDenial())
	}
	b.ExtensionPaymentOrderID = &orderID
	return nil
}

// MarkExtensionPaid merges a paid extension into the booking
func (b *Booking) MarkExtensionPaid(paymentID string, now time.Time) error {
	if !b.CanPayForExtension() {
		return NewGuardError("mark_extension_paid", b.ExtensionPaymentDenial())
	}
	if b.ExtensionNewEndDate == nil {
		return NewGuardError("mark_extension_paid", "extension has no end date")
	}
	paidAt := now.UTC()
	b.ExtensionPaymentStatus = ExtensionPaymentCompleted
	b.ExtensionPaymentDate = &paidAt
	b.ExtensionPaymentID = &paymentID
	b.EndDate = *b.ExtensionNewEndDate
	b.TotalPrice = b.TotalPrice.Add(b.ExtensionAdditionalPrice)
	b.ExtensionPaidTotal = b.ExtensionPaidTotal.Add(b.ExtensionAdditionalPrice)
	b.Status = BookingStatusExtended
	return nil
}

// ============================================================================
// FEEDBACK
// ============================================================================

// CanGiveFeedback requires a completed trip with no rating or feedback yet
func (b *Booking) CanGiveFeedback(hasRating, hasFeedback bool) bool {
	return b.Status == BookingStatusCompleted && !hasRating && !hasFeedback
}

// ============================================================================
// REQUESTS
// ============================================================================

// CreateBookingRequest represents the request to book a car
type CreateBookingRequest struct {
	CarID     string `json:"car_id" binding:"required,uuid"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// CancelBookingRequest represents the request to cancel a booking
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// ExtensionRequest represents the request to extend a trip
type ExtensionRequest struct {
	NewEndDate string `json:"new_end_date" binding:"required"`
}

// TruncateText trims s to at most max runes
func TruncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func formatWindow(d time.Duration) string {
	hours := int(d / time.Hour)
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
