package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RequestMeta is the caller's network identity, kept on payment audits
type RequestMeta struct {
	IP        string
	UserAgent string
}

// PaymentOrder is what the client needs to open the checkout widget
type PaymentOrder struct {
	OrderID     string                `json:"order_id"`
	BookingID   uuid.UUID             `json:"booking_id"`
	Purpose     models.PaymentPurpose `json:"purpose"`
	Amount      decimal.Decimal       `json:"amount"`
	AmountPaise int64                 `json:"amount_paise"`
	Currency    string                `json:"currency"`
	Receipt     string                `json:"receipt"`
	KeyID       string                `json:"key_id"`
}

// PaymentCallback is the checkout success payload
type PaymentCallback struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// PaymentFailure is the checkout failure payload
type PaymentFailure struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id"`
	Reason    string `json:"reason"`
}

// PaymentService connects gateway orders and callbacks to booking transitions
type PaymentService struct {
	bookings *BookingService
	gateway  OrderGateway
	audits   PaymentAuditLogger
	logger   *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(bookings *BookingService, gateway OrderGateway, audits PaymentAuditLogger, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		bookings: bookings,
		gateway:  gateway,
		audits:   audits,
		logger:   logger,
	}
}

func receiptFor(purpose models.PaymentPurpose, bookingID uuid.UUID) string {
	if purpose == models.PaymentPurposeExtension {
		return fmt.Sprintf("extension_receipt_%s", bookingID)
	}
	return fmt.Sprintf("booking_receipt_%s", bookingID)
}

func (s *PaymentService) audit(ctx context.Context, audit *models.PaymentAudit, meta RequestMeta) {
	device := utils.ParseUserAgent(meta.UserAgent)
	details := audit.Details
	if details == nil {
		details = models.JSONB{}
	}
	details["device_type"] = device.DeviceType
	details["platform"] = device.Platform
	details["browser"] = device.Browser
	audit.SetDetails(details).SetMetadata(meta.IP, meta.UserAgent)

	if s.audits == nil {
		return
	}
	// Audit failures are logged by the repository and never fail the payment
	_ = s.audits.Log(context.WithoutCancel(ctx), audit)
}

// InitiatePayment opens a gateway order for the booking's total
func (s *PaymentService) InitiatePayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID, meta RequestMeta) (*PaymentOrder, error) {
	return s.createOrder(ctx, actor, bookingID, models.PaymentPurposeBooking, meta)
}

// InitiateExtensionPayment opens a gateway order for an approved extension
func (s *PaymentService) InitiateExtensionPayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID, meta RequestMeta) (*PaymentOrder, error) {
	return s.createOrder(ctx, actor, bookingID, models.PaymentPurposeExtension, meta)
}

func (s *PaymentService) createOrder(ctx context.Context, actor models.Actor, bookingID uuid.UUID, purpose models.PaymentPurpose, meta RequestMeta) (*PaymentOrder, error) {
	booking, amount, err := s.bookings.PaymentQuote(ctx, actor, bookingID, purpose)
	if err != nil {
		return nil, err
	}

	receipt := receiptFor(purpose, booking.ID)
	order, err := s.gateway.CreateOrder(ctx, CreateOrderParams{
		Amount:  amount,
		Receipt: receipt,
		Notes: map[string]string{
			"booking_reference": booking.BookingReference,
			"purpose":           string(purpose),
		},
	})
	if err != nil {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventOrderFailed, models.PaymentSourceGatewayAPI).
			SetBooking(booking.ID, purpose).
			SetAmount(amount, "INR").
			SetError(err.Error()), meta)
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	if err := s.bookings.AttachOrder(ctx, booking.ID, purpose, order.ID); err != nil {
		return nil, err
	}

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceBackend).
		SetBooking(booking.ID, purpose).
		SetGatewayIDs(order.ID, "").
		SetAmount(amount, order.Currency).
		SetDetails(map[string]interface{}{"receipt": receipt}), meta)

	return &PaymentOrder{
		OrderID:     order.ID,
		BookingID:   booking.ID,
		Purpose:     purpose,
		Amount:      amount,
		AmountPaise: order.Amount,
		Currency:    order.Currency,
		Receipt:     receipt,
		KeyID:       s.gateway.KeyID(),
	}, nil
}

// HandleCallback verifies a checkout success callback and applies it. A forged
// signature is rejected before any booking is read.
func (s *PaymentService) HandleCallback(ctx context.Context, actor models.Actor, cb PaymentCallback, meta RequestMeta) (*models.Booking, error) {
	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceCallback).
		SetGatewayIDs(cb.OrderID, cb.PaymentID), meta)

	if !s.gateway.VerifySignature(cb.OrderID, cb.PaymentID, cb.Signature) {
		paymentCallbacks.WithLabelValues("unknown", "signature_mismatch").Inc()
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventSignatureMismatch, models.PaymentSourceCallback).
			SetGatewayIDs(cb.OrderID, cb.PaymentID).
			SetError(models.ErrSignatureMismatch.Error()), meta)
		s.logger.WithFields(logrus.Fields{
			"order_id":   cb.OrderID,
			"payment_id": cb.PaymentID,
			"ip":         meta.IP,
		}).Warn("Payment callback signature mismatch")
		return nil, models.ErrSignatureMismatch
	}

	booking, purpose, err := s.bookings.ConfirmPayment(ctx, actor, cb.OrderID, cb.PaymentID)
	if err != nil {
		outcome := "error"
		event := models.PaymentEventError
		switch {
		case models.IsGuardError(err):
			outcome, event = "duplicate", models.PaymentEventDuplicate
		case models.IsIntegrityError(err):
			outcome = "rejected"
		}
		paymentCallbacks.WithLabelValues(purposeLabel(purpose), outcome).Inc()
		s.audit(ctx, models.NewPaymentAudit(event, models.PaymentSourceCallback).
			SetGatewayIDs(cb.OrderID, cb.PaymentID).
			SetError(err.Error()), meta)
		return nil, err
	}

	event := models.PaymentEventBookingConfirmed
	amount := booking.TotalPrice
	if purpose == models.PaymentPurposeExtension {
		event = models.PaymentEventExtensionMerged
		amount = booking.ExtensionAdditionalPrice
	}
	paymentCallbacks.WithLabelValues(purposeLabel(purpose), "success").Inc()
	s.audit(ctx, models.NewPaymentAudit(event, models.PaymentSourceCallback).
		SetBooking(booking.ID, purpose).
		SetGatewayIDs(cb.OrderID, cb.PaymentID).
		SetAmount(amount, "INR"), meta)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"order_id":   cb.OrderID,
		"payment_id": cb.PaymentID,
		"purpose":    purpose,
	}).Info("Payment applied")

	return booking, nil
}

// HandleFailure records a payment the gateway reported as failed
func (s *PaymentService) HandleFailure(ctx context.Context, actor models.Actor, f PaymentFailure, meta RequestMeta) (*models.Booking, error) {
	booking, purpose, err := s.bookings.FailPayment(ctx, actor, f.OrderID, f.PaymentID)

	audit := models.NewPaymentAudit(models.PaymentEventFailed, models.PaymentSourceUser).
		SetGatewayIDs(f.OrderID, f.PaymentID)
	if f.Reason != "" {
		audit.SetError(models.TruncateText(f.Reason, models.MaxReasonLength))
	}
	if booking != nil {
		audit.SetBooking(booking.ID, purpose)
	}
	if err != nil && !errors.Is(err, models.ErrUnknownOrder) {
		audit.SetDetails(map[string]interface{}{"rejected": err.Error()})
	}
	s.audit(ctx, audit, meta)

	if err != nil {
		paymentCallbacks.WithLabelValues(purposeLabel(purpose), "failure_rejected").Inc()
		return nil, err
	}
	paymentCallbacks.WithLabelValues(purposeLabel(purpose), "failed").Inc()
	return booking, nil
}

func purposeLabel(p models.PaymentPurpose) string {
	if p == "" {
		return "unknown"
	}
	return string(p)
}
