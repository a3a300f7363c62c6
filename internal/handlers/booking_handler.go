package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler exposes the booking lifecycle
type BookingHandler struct {
	bookings *services.BookingService
	feedback *services.FeedbackService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings *services.BookingService, feedback *services.FeedbackService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		feedback: feedback,
		logger:   logger,
	}
}

// ============================================================================
// CREATE & READ
// ============================================================================

// InitiateBooking creates a pending booking
// POST /api/v1/bookings
func (h *BookingHandler) InitiateBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.InitiateBooking(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// ListBookings returns the caller's bookings, or the bookings on a host's cars
// GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit, offset := pagination(c, 20)

	bookings, err := h.bookings.ListBookings(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetBooking returns one booking visible to the caller
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ============================================================================
// TRIP
// ============================================================================

// ActivateTrip starts a paid trip
// POST /api/v1/bookings/:id/activate
func (h *BookingHandler) ActivateTrip(c *gin.Context) {
	h.transition(c, h.bookings.ActivateTrip)
}

// CompleteTrip ends an active trip and pays the host
// POST /api/v1/bookings/:id/complete
func (h *BookingHandler) CompleteTrip(c *gin.Context) {
	h.transition(c, h.bookings.CompleteTrip)
}

// ApproveExtension is called by the car's host
// POST /api/v1/bookings/:id/extension/approve
func (h *BookingHandler) ApproveExtension(c *gin.Context) {
	h.transition(c, h.bookings.ApproveExtension)
}

// RejectExtension is called by the car's host
// POST /api/v1/bookings/:id/extension/reject
func (h *BookingHandler) RejectExtension(c *gin.Context) {
	h.transition(c, h.bookings.RejectExtension)
}

type transitionFunc func(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Booking, error)

func (h *BookingHandler) transition(c *gin.Context, fn transitionFunc) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	booking, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ============================================================================
// CANCELLATION & EXTENSION
// ============================================================================

// CancelBooking cancels on behalf of the user, the host or an admin
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.CancelBookingRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.CancelBooking(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// RequestExtension asks the host for a later end
// POST /api/v1/bookings/:id/extension
func (h *BookingHandler) RequestExtension(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.ExtensionRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.RequestExtension(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ============================================================================
// FEEDBACK
// ============================================================================

// FeedbackEligibility reports whether the caller may still rate the trip
// GET /api/v1/bookings/:id/feedback-eligibility
func (h *BookingHandler) FeedbackEligibility(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	eligible, err := h.bookings.CanGiveFeedback(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": id, "can_give_feedback": eligible})
}

// SubmitFeedback rates the host of a completed trip
// POST /api/v1/bookings/:id/feedback
func (h *BookingHandler) SubmitFeedback(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.SubmitFeedbackRequest
	if !bindJSON(c, &req) {
		return
	}

	rating, feedback, err := h.feedback.Submit(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"rating":   rating,
		"feedback": feedback,
	})
}

// HostRating returns a host's average rating
// GET /api/v1/hosts/:id/rating
func (h *BookingHandler) HostRating(c *gin.Context) {
	hostID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	summary, err := h.feedback.HostRating(c.Request.Context(), hostID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
