package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/middleware"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/rentwheels/carshare-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

var notFoundErrors = []error{
	models.ErrBookingNotFound,
	models.ErrCarNotFound,
	models.ErrAccountNotFound,
	models.ErrHostNotFound,
	models.ErrBankAccountNotFound,
	models.ErrNotificationNotFound,
}

// respondError maps service errors onto HTTP responses. Unknown errors are
// logged and reported as 500 without their text.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var vErr *models.ValidationError
	var gErr *models.GuardError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   vErr.Field,
			"message": vErr.Message,
		})
	case errors.As(err, &gErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": gErr.Error(),
		})
	case errors.Is(err, models.ErrSlotUnavailable), errors.Is(err, models.ErrCarUnavailable):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "unavailable",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrInsufficientBalance), errors.Is(err, models.ErrNoPrimaryBankAccount):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "wallet_error",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrSignatureMismatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "signature_mismatch",
			"message": "Payment verification failed",
		})
	case errors.Is(err, models.ErrUnknownOrder):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "unknown_order",
			"message": "Payment order not recognised",
		})
	case models.IsIntegrityError(err):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to act on this resource",
		})
	case isNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong. Please try again.",
		})
	}
}

func isNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// actorOrAbort returns the authenticated actor or writes a 401
func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
	}
	return actor, ok
}

// uuidParam parses a path parameter or writes a 400
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   name,
			"message": "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body or writes a 400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return false
	}
	return true
}

// pagination reads limit and offset query parameters with defaults
func pagination(c *gin.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IP:        utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
}
