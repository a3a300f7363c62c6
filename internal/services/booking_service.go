package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/database"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// EarningsLedger is the slice of the wallet ledger booking transitions write to
type EarningsLedger interface {
	RecordHostEarning(ctx context.Context, hostUserID uuid.UUID, b *models.Booking, amount decimal.Decimal) (*models.WalletTransaction, error)
	RecordExtensionEarning(ctx context.Context, hostUserID uuid.UUID, b *models.Booking, amount decimal.Decimal) (*models.WalletTransaction, error)
	RecordEarningReversal(ctx context.Context, hostUserID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error)
	RecordCancellationFee(ctx context.Context, hostUserID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error)
	RecordRefund(ctx context.Context, userID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error)
}

// BookingService drives the booking lifecycle. Each transition loads the
// booking under a row lock, applies the model transition and writes the
// booking and its ledger rows in one transaction. Notifications go out after
// commit.
type BookingService struct {
	tx       database.Transactor
	bookings BookingStore
	cars     CarStore
	ledger   EarningsLedger
	feedback FeedbackLookup
	notifier Notifier
	clock    utils.Clock
	logger   *logrus.Logger
}

// NewBookingService creates a new BookingService. The feedback lookup is
// required: feedback eligibility cannot be answered without it.
func NewBookingService(
	tx database.Transactor,
	bookings BookingStore,
	cars CarStore,
	ledger EarningsLedger,
	feedback FeedbackLookup,
	notifier Notifier,
	clock utils.Clock,
	logger *logrus.Logger,
) (*BookingService, error) {
	if feedback == nil {
		return nil, errors.New("booking service requires a feedback lookup")
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &BookingService{
		tx:       tx,
		bookings: bookings,
		cars:     cars,
		ledger:   ledger,
		feedback: feedback,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}, nil
}

// notice is a message queued during a transition and sent after commit
type notice struct {
	userID  uuid.UUID
	admins  bool
	message string
}

type outbox []notice

func (o *outbox) user(id uuid.UUID, format string, args ...interface{}) {
	*o = append(*o, notice{userID: id, message: fmt.Sprintf(format, args...)})
}

func (o *outbox) admins(format string, args ...interface{}) {
	*o = append(*o, notice{admins: true, message: fmt.Sprintf(format, args...)})
}

func (s *BookingService) dispatch(ctx context.Context, notes outbox) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, n := range notes {
		if n.admins {
			s.notifier.NotifyAdmins(ctx, n.message)
			continue
		}
		s.notifier.Notify(ctx, n.userID, n.message)
	}
}

// transition runs fn in a transaction and dispatches its notices on success
func (s *BookingService) transition(ctx context.Context, operation string, fn func(ctx context.Context, notes *outbox) error) error {
	var notes outbox
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, &notes)
	})
	observeTransition(operation, err)
	if err != nil {
		return err
	}
	s.dispatch(ctx, notes)
	return nil
}

// ============================================================================
// CREATION AND READS
// ============================================================================

// InitiateBooking creates a pending booking after checking the car's calendar
func (s *BookingService) InitiateBooking(ctx context.Context, actor models.Actor, req models.CreateBookingRequest) (*models.Booking, error) {
	carID, err := uuid.Parse(req.CarID)
	if err != nil {
		return nil, models.NewValidationError("car_id", "invalid car ID")
	}
	start, err := utils.ParseLocalDateTime(req.StartDate)
	if err != nil {
		return nil, models.NewValidationError("start_date", err.Error())
	}
	end, err := utils.ParseLocalDateTime(req.EndDate)
	if err != nil {
		return nil, models.NewValidationError("end_date", err.Error())
	}
	if err := models.ValidateWindow(start, end); err != nil {
		return nil, err
	}
	if start.Before(s.clock.Now()) {
		return nil, models.NewValidationError("start_date", "start date cannot be in the past")
	}

	var booking *models.Booking
	var car *models.Car
	err = s.transition(ctx, "initiate", func(ctx context.Context, notes *outbox) error {
		car, err = s.cars.GetForUpdate(ctx, carID)
		if err != nil {
			return err
		}
		if !car.CanBeBooked() {
			return models.ErrCarUnavailable
		}
		if car.HostUserID == actor.AccountID {
			return models.NewValidationError("car_id", "you cannot book your own car")
		}

		overlapping, err := s.bookings.CountOverlapping(ctx, car.ID, start, end, nil)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return models.ErrSlotUnavailable
		}

		booking, err = models.NewBooking(actor.AccountID, car, start, end)
		if err != nil {
			return err
		}
		return s.bookings.Create(ctx, booking, car.PricePerHour)
	})
	if errors.Is(err, models.ErrSlotUnavailable) && car != nil && s.notifier != nil {
		s.notifier.Notify(context.WithoutCancel(ctx), actor.AccountID,
			fmt.Sprintf("Booking failed for %s. Car is not available for the selected dates/times.", car.DisplayName()))
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"reference":   booking.BookingReference,
		"car_id":      car.ID,
		"user_id":     actor.AccountID,
		"total_price": booking.TotalPrice.StringFixed(2),
	}).Info("Booking initiated")

	return booking, nil
}

// GetBooking returns a booking visible to the actor
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || b.UserID == actor.AccountID {
		return b, nil
	}
	car, err := s.cars.GetByID(ctx, b.CarID)
	if err != nil {
		return nil, err
	}
	if !actor.IsHostOf(car.HostID) {
		return nil, models.ErrForbidden
	}
	return b, nil
}

// ListBookings returns the actor's bookings. Hosts see the bookings of their cars.
func (s *BookingService) ListBookings(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var (
		bookings []*models.Booking
		err      error
	)
	if actor.Role == models.RoleHost && actor.HostID != nil {
		bookings, err = s.bookings.ListByHost(ctx, *actor.HostID, limit, offset)
	} else {
		bookings, err = s.bookings.ListByUser(ctx, actor.AccountID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}

// loadOwned locks a booking and its car and checks the actor is the booking's user
func (s *BookingService) loadOwned(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, *models.Car, error) {
	b, err := s.bookings.GetForUpdate(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.UserID != actor.AccountID {
		return nil, nil, models.ErrForbidden
	}
	car, err := s.cars.GetByID(ctx, b.CarID)
	if err != nil {
		return nil, nil, err
	}
	return b, car, nil
}

// loadHosted locks a booking and its car and checks the actor hosts the car
func (s *BookingService) loadHosted(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, *models.Car, error) {
	b, err := s.bookings.GetForUpdate(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	car, err := s.cars.GetByID(ctx, b.CarID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsHostOf(car.HostID) {
		return nil, nil, models.ErrForbidden
	}
	return b, car, nil
}

// ============================================================================
// TRIP
// ============================================================================

// ActivateTrip starts a paid trip once its start time is reached
func (s *BookingService) ActivateTrip(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	var b *models.Booking
	err := s.transition(ctx, "activate", func(ctx context.Context, notes *outbox) error {
		var car *models.Car
		var err error
		b, car, err = s.loadOwned(ctx, actor, bookingID)
		if err != nil {
			return err
		}
		if err := b.ActivateTrip(s.clock.Now()); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}

		notes.user(b.UserID, "Your trip for %s (Booking #%s) has started!", car.DisplayName(), b.BookingReference)
		notes.user(car.HostUserID, "A trip for your %s (Booking #%s) has started!", car.DisplayName(), b.BookingReference)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CompleteTrip ends an active trip and credits the host's earnings
func (s *BookingService) CompleteTrip(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	var b *models.Booking
	err := s.transition(ctx, "complete", func(ctx context.Context, notes *outbox) error {
		var car *models.Car
		var err error
		b, car, err = s.loadOwned(ctx, actor, bookingID)
		if err != nil {
			return err
		}
		if err := b.CompleteTrip(s.clock.Now()); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}

		trip, extension := b.HostEarnings()
		if trip.IsPositive() {
			if _, err := s.ledger.RecordHostEarning(ctx, car.HostUserID, b, trip); err != nil {
				return err
			}
		}
		if extension.IsPositive() {
			if _, err := s.ledger.RecordExtensionEarning(ctx, car.HostUserID, b, extension); err != nil {
				return err
			}
		}

		notes.user(b.UserID, "Your trip for %s (Booking #%s) has been completed. Thank you!", car.DisplayName(), b.BookingReference)
		notes.user(car.HostUserID, "The trip for your %s (Booking #%s) has been completed.", car.DisplayName(), b.BookingReference)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ============================================================================
// CANCELLATION
// ============================================================================

// CancelBooking cancels under the policy matching the actor's relation to the
// booking: the booking's user, the car's host or an admin.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Actor, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	var b *models.Booking
	err := s.transition(ctx, "cancel", func(ctx context.Context, notes *outbox) error {
		var err error
		b, err = s.bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		car, err := s.cars.GetByID(ctx, b.CarID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		wasPaid := b.IsPaid()
		snippet := reasonSnippet(reason)

		switch {
		case actor.IsAdmin():
			if err := b.CancelByAdmin(reason, now); err != nil {
				return err
			}
			notes.user(b.UserID, "Your booking #%s for %s has been cancelled by an administrator. Reason: %s", b.BookingReference, car.DisplayName(), snippet)
			notes.user(car.HostUserID, "Booking #%s for your %s has been cancelled by an administrator. Reason: %s", b.BookingReference, car.DisplayName(), snippet)
		case b.UserID == actor.AccountID:
			if err := b.CancelByUser(reason, now); err != nil {
				return err
			}
			notes.user(b.UserID, "Your booking #%s for %s has been cancelled. Reason: %s", b.BookingReference, car.DisplayName(), snippet)
			notes.user(car.HostUserID, "A booking #%s for your %s has been cancelled by the user. Reason: %s", b.BookingReference, car.DisplayName(), snippet)
		case actor.IsHostOf(car.HostID):
			if err := b.CancelByHost(reason, now); err != nil {
				return err
			}
			notes.user(b.UserID, "Your booking #%s for %s has been cancelled by the host. Reason: %s", b.BookingReference, car.DisplayName(), snippet)
			notes.admins("Host cancelled booking #%s for %s. Reason: %s", b.BookingReference, car.DisplayName(), snippet)
		default:
			return models.ErrForbidden
		}

		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}
		if !wasPaid {
			return nil
		}

		if _, err := s.ledger.RecordEarningReversal(ctx, car.HostUserID, b); err != nil {
			return err
		}
		if b.CancellationFee.IsPositive() {
			if _, err := s.ledger.RecordCancellationFee(ctx, car.HostUserID, b); err != nil {
				return err
			}
		}
		if b.RefundAmount.IsPositive() {
			if _, err := s.ledger.RecordRefund(ctx, b.UserID, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   b.ID,
		"cancelled_by": *b.CancelledBy,
		"fee":          b.CancellationFee.StringFixed(2),
		"refund":       b.RefundAmount.StringFixed(2),
	}).Info("Booking cancelled")

	return b, nil
}

func reasonSnippet(reason string) string {
	if reason == "" {
		return "No reason provided"
	}
	return models.TruncateText(reason, 50) + "..."
}

// ============================================================================
// EXTENSION
// ============================================================================

// RequestExtension asks the host to extend the trip to newEnd
func (s *BookingService) RequestExtension(ctx context.Context, actor models.Actor, bookingID uuid.UUID, req models.ExtensionRequest) (*models.Booking, error) {
	newEnd, err := utils.ParseLocalDateTime(req.NewEndDate)
	if err != nil {
		return nil, models.NewValidationError("new_end_date", err.Error())
	}

	var b *models.Booking
	err = s.transition(ctx, "request_extension", func(ctx context.Context, notes *outbox) error {
		var car *models.Car
		var err error
		b, car, err = s.loadOwned(ctx, actor, bookingID)
		if err != nil {
			return err
		}

		currentEnd := b.EffectiveEndDate()
		if err := b.RequestExtension(newEnd, car.PricePerHour, s.clock.Now()); err != nil {
			return err
		}

		overlapping, err := s.bookings.CountOverlapping(ctx, b.CarID, currentEnd, *b.ExtensionNewEndDate, &b.ID)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return models.ErrSlotUnavailable
		}

		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}

		notes.user(car.HostUserID, "Extension requested for booking #%s (%s): %d more day(s) until %s.",
			b.BookingReference, car.DisplayName(), b.ExtensionAdditionalDays, utils.FormatLocal(*b.ExtensionNewEndDate))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ApproveExtension records the host's approval
func (s *BookingService) ApproveExtension(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	var b *models.Booking
	err := s.transition(ctx, "approve_extension", func(ctx context.Context, notes *outbox) error {
		var car *models.Car
		var err error
		b, car, err = s.loadHosted(ctx, actor, bookingID)
		if err != nil {
			return err
		}
		if err := b.ApproveExtension(s.clock.Now()); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}

		notes.user(b.UserID, "Your extension for booking #%s was approved. Please pay Rs. %s to confirm it.",
			b.BookingReference, b.ExtensionAdditionalPrice.StringFixed(2))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// RejectExtension declines the request and clears the extension
func (s *BookingService) RejectExtension(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	var b *models.Booking
	err := s.transition(ctx, "reject_extension", func(ctx context.Context, notes *outbox) error {
		var car *models.Car
		var err error
		b, car, err = s.loadHosted(ctx, actor, bookingID)
		if err != nil {
			return err
		}
		if err := b.RejectExtension(); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}

		notes.user(b.UserID, "Your extension request for booking #%s (%s) was declined by the host.", b.BookingReference, car.DisplayName())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ============================================================================
// PAYMENT
// ============================================================================

// PaymentQuote checks that the actor may pay for the booking or its approved
// extension and returns the amount due
func (s *BookingService) PaymentQuote(ctx context.Context, actor models.Actor, bookingID uuid.UUID, purpose models.PaymentPurpose) (*models.Booking, decimal.Decimal, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if b.UserID != actor.AccountID {
		return nil, decimal.Zero, models.ErrForbidden
	}

	switch purpose {
	case models.PaymentPurposeBooking:
		if !b.CanAcceptPaymentOrder() {
			return nil, decimal.Zero, models.NewGuardError("create_payment_order", fmt.Sprintf("booking is %s with payment %s", b.Status, b.PaymentStatus))
		}
		return b, b.TotalPrice, nil
	case models.PaymentPurposeExtension:
		if !b.CanPayForExtension() {
			return nil, decimal.Zero, models.NewGuardError("create_extension_order", b.ExtensionPaymentDenial())
		}
		return b, b.ExtensionAdditionalPrice, nil
	}
	return nil, decimal.Zero, models.NewValidationError("purpose", "unknown payment purpose")
}

// AttachOrder stores a freshly created gateway order on the booking
func (s *BookingService) AttachOrder(ctx context.Context, bookingID uuid.UUID, purpose models.PaymentPurpose, orderID string) error {
	return s.transition(ctx, "attach_order", func(ctx context.Context, notes *outbox) error {
		b, err := s.bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		car, err := s.cars.GetByID(ctx, b.CarID)
		if err != nil {
			return err
		}

		if purpose == models.PaymentPurposeExtension {
			err = b.AttachExtensionOrder(orderID)
		} else {
			err = b.AttachPaymentOrder(orderID)
		}
		if err != nil {
			return err
		}
		return s.bookings.Update(ctx, b, car.PricePerHour)
	})
}

// resolveOrder locks the booking that owns a gateway order and checks ownership
func (s *BookingService) resolveOrder(ctx context.Context, actor models.Actor, orderID string) (*models.Booking, *models.Car, models.PaymentPurpose, error) {
	b, err := s.bookings.GetByPaymentOrderForUpdate(ctx, orderID)
	if errors.Is(err, models.ErrBookingNotFound) {
		return nil, nil, "", models.ErrUnknownOrder
	}
	if err != nil {
		return nil, nil, "", err
	}
	if b.UserID != actor.AccountID {
		return nil, nil, "", models.ErrForbidden
	}
	car, err := s.cars.GetByID(ctx, b.CarID)
	if err != nil {
		return nil, nil, "", err
	}

	purpose := models.PaymentPurposeBooking
	if b.ExtensionPaymentOrderID != nil && *b.ExtensionPaymentOrderID == orderID {
		purpose = models.PaymentPurposeExtension
	}
	return b, car, purpose, nil
}

// ConfirmPayment applies a verified gateway payment. A repeated callback for an
// already applied payment fails the guard and changes nothing.
func (s *BookingService) ConfirmPayment(ctx context.Context, actor models.Actor, orderID, paymentID string) (*models.Booking, models.PaymentPurpose, error) {
	var (
		b       *models.Booking
		purpose models.PaymentPurpose
	)
	err := s.transition(ctx, "confirm_payment", func(ctx context.Context, notes *outbox) error {
		var car *models.Car
		var err error
		b, car, purpose, err = s.resolveOrder(ctx, actor, orderID)
		if err != nil {
			return err
		}
		now := s.clock.Now()

		if purpose == models.PaymentPurposeExtension {
			if err := b.MarkExtensionPaid(paymentID, now); err != nil {
				return err
			}
			if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
				return err
			}
			notes.user(b.UserID, "Extension confirmed for booking #%s. Your %s is now yours until %s.",
				b.BookingReference, car.DisplayName(), utils.FormatLocal(b.EndDate))
			notes.user(car.HostUserID, "Booking #%s for your %s has been extended until %s.",
				b.BookingReference, car.DisplayName(), utils.FormatLocal(b.EndDate))
			return nil
		}

		if err := b.MarkAsPaid(paymentID, now); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}
		notes.user(b.UserID, "Payment received for booking #%s. Your %s is confirmed from %s to %s.",
			b.BookingReference, car.DisplayName(), utils.FormatLocal(b.StartDate), utils.FormatLocal(b.EndDate))
		notes.user(car.HostUserID, "New confirmed booking #%s for your %s from %s to %s.",
			b.BookingReference, car.DisplayName(), utils.FormatLocal(b.StartDate), utils.FormatLocal(b.EndDate))
		return nil
	})
	if err != nil {
		return nil, purpose, err
	}
	return b, purpose, nil
}

// FailPayment records a failed gateway payment. A failed extension payment
// leaves the approved extension open for another attempt.
func (s *BookingService) FailPayment(ctx context.Context, actor models.Actor, orderID, paymentID string) (*models.Booking, models.PaymentPurpose, error) {
	var (
		b       *models.Booking
		purpose models.PaymentPurpose
	)
	err := s.transition(ctx, "fail_payment", func(ctx context.Context, notes *outbox) error {
		var car *models.Car
		var err error
		b, car, purpose, err = s.resolveOrder(ctx, actor, orderID)
		if err != nil {
			return err
		}

		if purpose == models.PaymentPurposeExtension {
			notes.user(b.UserID, "Payment for the extension of booking #%s failed. You can retry from your bookings.", b.BookingReference)
			return nil
		}

		if err := b.MarkPaymentFailed(paymentID); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, b, car.PricePerHour); err != nil {
			return err
		}
		notes.user(b.UserID, "Payment for booking #%s failed. You can retry from your bookings.", b.BookingReference)
		return nil
	})
	if err != nil {
		return nil, purpose, err
	}
	return b, purpose, nil
}

// ============================================================================
// FEEDBACK
// ============================================================================

// CanGiveFeedback reports whether the booking's user may still rate the trip
func (s *BookingService) CanGiveFeedback(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (bool, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b.UserID != actor.AccountID {
		return false, models.ErrForbidden
	}
	return s.canGiveFeedback(ctx, b)
}

func (s *BookingService) canGiveFeedback(ctx context.Context, b *models.Booking) (bool, error) {
	if b.Status != models.BookingStatusCompleted {
		return false, nil
	}
	hasRating, err := s.feedback.HasRating(ctx, b.ID)
	if err != nil {
		return false, err
	}
	hasFeedback, err := s.feedback.HasFeedback(ctx, b.ID)
	if err != nil {
		return false, err
	}
	return b.CanGiveFeedback(hasRating, hasFeedback), nil
}
