package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// HostLookup finds the host profile linked to a user account
type HostLookup interface {
	GetHostByUserID(ctx context.Context, userID uuid.UUID) (*models.Host, error)
}

// RequireHostProfile makes sure a host actor carries its host id. Tokens
// issued before the host profile existed are resolved against the database.
// Must be used after AuthMiddleware.
func RequireHostProfile(hosts HostLookup, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortUnauthorized(c, "unauthorized", "Actor not found", "MISSING_USER_CONTEXT")
			return
		}

		if actor.Role != models.RoleHost {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "not_host",
				"message": "Only hosts can access this resource",
				"code":    "INSUFFICIENT_PERMISSIONS",
			})
			return
		}

		if actor.HostID != nil {
			c.Next()
			return
		}

		host, err := hosts.GetHostByUserID(c.Request.Context(), actor.AccountID)
		if err != nil {
			if errors.Is(err, models.ErrHostNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "not_host",
					"message": "Host profile not found",
					"code":    "HOST_PROFILE_MISSING",
				})
				return
			}
			logger.WithError(err).WithField("account_id", actor.AccountID).Error("Failed to resolve host profile")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "database_error",
				"message": "Failed to verify host status",
			})
			return
		}

		actor.HostID = &host.ID
		c.Set(ActorContextKey, actor)
		c.Next()
	}
}
