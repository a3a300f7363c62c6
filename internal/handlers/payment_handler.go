package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// PaymentHandler handles checkout orders and gateway callbacks
type PaymentHandler struct {
	payments *services.PaymentService
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// ============================================================================
// ORDERS
// ============================================================================

// CreateBookingOrder opens a gateway order for the booking total
// POST /api/v1/payments/bookings/:id/order
func (h *PaymentHandler) CreateBookingOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.payments.InitiatePayment(c.Request.Context(), actor, id, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CreateExtensionOrder opens a gateway order for an approved extension
// POST /api/v1/payments/bookings/:id/extension-order
func (h *PaymentHandler) CreateExtensionOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.payments.InitiateExtensionPayment(c.Request.Context(), actor, id, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ============================================================================
// CALLBACKS
// ============================================================================

// Callback verifies the checkout signature and confirms the payment
// POST /api/v1/payments/callback
func (h *PaymentHandler) Callback(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var cb services.PaymentCallback
	if !bindJSON(c, &cb) {
		return
	}

	booking, err := h.payments.HandleCallback(c.Request.Context(), actor, cb, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment successful",
		"booking": booking,
	})
}

// Failure records a checkout the gateway reported as failed
// POST /api/v1/payments/failure
func (h *PaymentHandler) Failure(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var f services.PaymentFailure
	if !bindJSON(c, &f) {
		return
	}

	booking, err := h.payments.HandleFailure(c.Request.Context(), actor, f, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": false,
		"message": "Payment failed. You can retry the payment.",
		"booking": booking,
	})
}
