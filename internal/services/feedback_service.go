package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/database"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// HostRatingSummary is a host's public rating
type HostRatingSummary struct {
	HostID  uuid.UUID `json:"host_id"`
	Average float64   `json:"average"`
	Count   int       `json:"count"`
}

// FeedbackService records ratings and written feedback for completed trips
type FeedbackService struct {
	tx       database.Transactor
	bookings *BookingService
	store    FeedbackStore
	notifier Notifier
	logger   *logrus.Logger
}

// NewFeedbackService creates a new FeedbackService
func NewFeedbackService(tx database.Transactor, bookings *BookingService, store FeedbackStore, notifier Notifier, logger *logrus.Logger) *FeedbackService {
	return &FeedbackService{
		tx:       tx,
		bookings: bookings,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit stores the rating, and the written feedback when a message is given,
// in one transaction
func (s *FeedbackService) Submit(ctx context.Context, actor models.Actor, bookingID uuid.UUID, req models.SubmitFeedbackRequest) (*models.HostRating, *models.HostFeedback, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		rating   *models.HostRating
		feedback *models.HostFeedback
		booking  *models.Booking
		car      *models.Car
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		booking, car, err = s.bookings.loadOwned(ctx, actor, bookingID)
		if err != nil {
			return err
		}
		ok, err := s.bookings.canGiveFeedback(ctx, booking)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewGuardError("submit_feedback", "feedback is only accepted once for a completed trip")
		}

		rating = &models.HostRating{
			ID:        uuid.New(),
			HostID:    car.HostID,
			UserID:    actor.AccountID,
			BookingID: booking.ID,
			Rating:    req.Rating,
		}
		if comment := strings.TrimSpace(req.Comment); comment != "" {
			rating.Comment = &comment
		}
		if err := s.store.CreateRating(ctx, rating); err != nil {
			return err
		}

		message := strings.TrimSpace(req.Message)
		if message == "" {
			return nil
		}
		subject := strings.TrimSpace(req.Subject)
		if subject == "" {
			subject = fmt.Sprintf("Feedback for booking %s", booking.BookingReference)
		}
		feedback = &models.HostFeedback{
			ID:        uuid.New(),
			HostID:    car.HostID,
			UserID:    actor.AccountID,
			BookingID: booking.ID,
			Subject:   subject,
			Message:   message,
		}
		return s.store.CreateFeedback(ctx, feedback)
	})
	observeTransition("submit_feedback", err)
	if err != nil {
		return nil, nil, err
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("You have received a %d-star rating for Booking #%s.", rating.Rating, booking.BookingReference)
		if feedback != nil {
			msg = fmt.Sprintf("You have received new feedback and a %d-star rating for Booking #%s.", rating.Rating, booking.BookingReference)
		}
		s.notifier.Notify(context.WithoutCancel(ctx), car.HostUserID, msg)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"host_id":    car.HostID,
		"rating":     rating.Rating,
	}).Info("Feedback submitted")

	return rating, feedback, nil
}

// HostRating returns a host's average rating rounded to one decimal
func (s *FeedbackService) HostRating(ctx context.Context, hostID uuid.UUID) (*HostRatingSummary, error) {
	avg, count, err := s.store.AverageRating(ctx, hostID)
	if err != nil {
		return nil, err
	}
	return &HostRatingSummary{
		HostID:  hostID,
		Average: math.Round(avg*10) / 10,
		Count:   count,
	}, nil
}
