package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(
		"test-access-secret-key-123456789",
		"test-refresh-secret-key-123456789",
		time.Hour,
		24*time.Hour,
	)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()

	accountID := uuid.New()
	hostID := uuid.New()
	token, err := jwtService.GenerateAccessToken(accountID, "host", &hostID)
	require.NoError(t, err)

	router.GET("/protected", AuthMiddleware(jwtService, testLogger()), func(c *gin.Context) {
		actor := MustGetActor(c)
		assert.Equal(t, accountID, actor.AccountID)
		assert.Equal(t, models.RoleHost, actor.Role)
		require.NotNil(t, actor.HostID)
		assert.Equal(t, hostID, *actor.HostID)
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	w := doRequest(router, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "success")
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()
	router.GET("/protected", AuthMiddleware(jwtService, testLogger()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
	})

	wrongService := jwt.NewService("wrong-secret-key", "wrong-refresh-secret", time.Hour, 24*time.Hour)
	foreign, err := wrongService.GenerateAccessToken(uuid.New(), "user", nil)
	require.NoError(t, err)

	badRole, err := jwtService.GenerateAccessToken(uuid.New(), "superuser", nil)
	require.NoError(t, err)

	refresh, err := jwtService.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"Missing header", "", "MISSING_AUTH_HEADER"},
		{"Missing Bearer", "some-token", "INVALID_AUTH_FORMAT"},
		{"Wrong prefix", "Basic some-token", "INVALID_AUTH_FORMAT"},
		{"Empty Bearer", "Bearer ", "INVALID_AUTH_FORMAT"},
		{"Malformed token", "Bearer invalid.token.here", "INVALID_TOKEN"},
		{"Wrong secret", "Bearer " + foreign, "INVALID_TOKEN"},
		{"Unknown role", "Bearer " + badRole, "INVALID_TOKEN"},
		{"Refresh token", "Bearer " + refresh, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "/protected", tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	jwtService := jwt.NewService("test-access-secret-key-123456789", "test-refresh-secret-key-123456789", -time.Minute, time.Hour)
	token, err := jwtService.GenerateAccessToken(uuid.New(), "user", nil)
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/protected", AuthMiddleware(jwtService, testLogger()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
	})

	w := doRequest(router, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestGetActor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Present", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		expected := models.Actor{AccountID: uuid.New(), Role: models.RoleUser}
		c.Set(ActorContextKey, expected)

		actor, ok := GetActor(c)
		assert.True(t, ok)
		assert.Equal(t, expected, actor)
	})

	t.Run("Missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		_, ok := GetActor(c)
		assert.False(t, ok)
		assert.Panics(t, func() { MustGetActor(c) })
	})

	t.Run("Wrong type", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ActorContextKey, "wrong type")
		_, ok := GetActor(c)
		assert.False(t, ok)
	})
}

func TestRequireRole(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()
	router.GET("/admin", AuthMiddleware(jwtService, testLogger()), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/hosts-or-admins", AuthMiddleware(jwtService, testLogger()), RequireRole(models.RoleHost, models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/no-auth", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
	})

	admin, err := jwtService.GenerateAccessToken(uuid.New(), "admin", nil)
	require.NoError(t, err)
	user, err := jwtService.GenerateAccessToken(uuid.New(), "user", nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		contains string
	}{
		{"Admin allowed", "/admin", admin, http.StatusOK, "success"},
		{"User forbidden", "/admin", user, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{"Any of roles", "/hosts-or-admins", admin, http.StatusOK, "success"},
		{"No actor", "/no-auth", "", http.StatusUnauthorized, "MISSING_USER_CONTEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := ""
			if tt.token != "" {
				header = "Bearer " + tt.token
			}
			w := doRequest(router, tt.path, header)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

type stubHosts struct {
	host *models.Host
	err  error
}

func (s stubHosts) GetHostByUserID(ctx context.Context, userID uuid.UUID) (*models.Host, error) {
	return s.host, s.err
}

func TestRequireHostProfile(t *testing.T) {
	jwtService := setupTestJWTService()
	resolvedID := uuid.New()

	newRouter := func(hosts HostLookup) *gin.Engine {
		router := setupTestRouter()
		router.GET("/host", AuthMiddleware(jwtService, testLogger()), RequireHostProfile(hosts, testLogger()), func(c *gin.Context) {
			actor := MustGetActor(c)
			c.JSON(http.StatusOK, gin.H{"host_id": actor.HostID.String()})
		})
		return router
	}

	t.Run("Host id from token", func(t *testing.T) {
		hostID := uuid.New()
		token, err := jwtService.GenerateAccessToken(uuid.New(), "host", &hostID)
		require.NoError(t, err)

		w := doRequest(newRouter(stubHosts{err: errors.New("should not be called")}), "/host", "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), hostID.String())
	})

	t.Run("Resolved from database", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(uuid.New(), "host", nil)
		require.NoError(t, err)

		w := doRequest(newRouter(stubHosts{host: &models.Host{ID: resolvedID}}), "/host", "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), resolvedID.String())
	})

	t.Run("No host profile", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(uuid.New(), "host", nil)
		require.NoError(t, err)

		w := doRequest(newRouter(stubHosts{err: models.ErrHostNotFound}), "/host", "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "HOST_PROFILE_MISSING")
	})

	t.Run("Not a host", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(uuid.New(), "user", nil)
		require.NoError(t, err)

		w := doRequest(newRouter(stubHosts{}), "/host", "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
