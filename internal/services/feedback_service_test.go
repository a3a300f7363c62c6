package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedBooking(t *testing.T, f *bookingFixture) *models.Booking {
	t.Helper()
	ctx := context.Background()

	b := f.paidBooking(t)
	f.clock.now = b.StartDate
	_, err := f.service.ActivateTrip(ctx, f.user, b.ID)
	require.NoError(t, err)
	done, err := f.service.CompleteTrip(ctx, f.user, b.ID)
	require.NoError(t, err)
	return done
}

func TestSubmitFeedback(t *testing.T) {
	t.Run("Rating And Message", func(t *testing.T) {
		f := setupBookingTest(t)
		service := NewFeedbackService(&passthroughTx{}, f.service, f.feedback, f.notifier, testLogger())
		b := completedBooking(t, f)

		rating, feedback, err := service.Submit(context.Background(), f.user, b.ID, models.SubmitFeedbackRequest{
			Rating:  5,
			Comment: "Spotless car",
			Message: "Pickup was smooth",
		})
		require.NoError(t, err)
		assert.Equal(t, f.car.HostID, rating.HostID)
		require.NotNil(t, feedback)
		assert.Equal(t, "Feedback for booking "+b.BookingReference, feedback.Subject)

		assert.Contains(t, f.notifier.to(f.host.AccountID),
			"You have received new feedback and a 5-star rating for Booking #"+b.BookingReference+".")

		_, _, err = service.Submit(context.Background(), f.user, b.ID, models.SubmitFeedbackRequest{Rating: 4})
		assert.True(t, models.IsGuardError(err), "one submission per booking")

		summary, err := service.HostRating(context.Background(), f.car.HostID)
		require.NoError(t, err)
		assert.Equal(t, 5.0, summary.Average)
		assert.Equal(t, 1, summary.Count)
	})

	t.Run("Rating Only", func(t *testing.T) {
		f := setupBookingTest(t)
		service := NewFeedbackService(&passthroughTx{}, f.service, f.feedback, f.notifier, testLogger())
		b := completedBooking(t, f)

		_, feedback, err := service.Submit(context.Background(), f.user, b.ID, models.SubmitFeedbackRequest{Rating: 3})
		require.NoError(t, err)
		assert.Nil(t, feedback)
		assert.Empty(t, f.feedback.feedback)
	})

	t.Run("Trip Not Completed", func(t *testing.T) {
		f := setupBookingTest(t)
		service := NewFeedbackService(&passthroughTx{}, f.service, f.feedback, f.notifier, testLogger())
		b := f.paidBooking(t)

		_, _, err := service.Submit(context.Background(), f.user, b.ID, models.SubmitFeedbackRequest{Rating: 4})
		assert.True(t, models.IsGuardError(err))
		assert.Empty(t, f.feedback.ratings)
	})

	t.Run("Invalid Rating", func(t *testing.T) {
		f := setupBookingTest(t)
		service := NewFeedbackService(&passthroughTx{}, f.service, f.feedback, f.notifier, testLogger())

		_, _, err := service.Submit(context.Background(), f.user, uuid.New(), models.SubmitFeedbackRequest{Rating: 6})
		assert.True(t, models.IsValidationError(err))
	})

	t.Run("Not The Booking User", func(t *testing.T) {
		f := setupBookingTest(t)
		service := NewFeedbackService(&passthroughTx{}, f.service, f.feedback, f.notifier, testLogger())
		b := completedBooking(t, f)

		_, _, err := service.Submit(context.Background(), f.host, b.ID, models.SubmitFeedbackRequest{Rating: 1})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}
