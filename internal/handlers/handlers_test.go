package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/database"
	"github.com/rentwheels/carshare-backend/internal/middleware"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/rentwheels/carshare-backend/pkg/sms"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// withActor stands in for AuthMiddleware
func withActor(actor models.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ActorContextKey, actor)
		c.Next()
	}
}

type handlerFixture struct {
	router  *gin.Engine
	mock    sqlmock.Sqlmock
	actor   models.Actor
	cleanup func()
}

// setupHandlerTest wires the real services over a sqlmock database, the way
// cmd/server does over postgres
func setupHandlerTest(t *testing.T, actor models.Actor) *handlerFixture {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	logger := testLogger()

	txManager := database.NewTxManager(sqlxDB)
	users := database.NewUserRepository(sqlxDB)
	bookingRepo := database.NewBookingRepository(sqlxDB)
	banks := database.NewBankAccountRepository(sqlxDB)
	feedbackRepo := database.NewFeedbackRepository(sqlxDB)

	wallet := services.NewWalletService(txManager, users, database.NewWalletRepository(sqlxDB), banks, logger)
	notifications := services.NewNotificationService(database.NewNotificationRepository(sqlxDB), users, sms.NewLogGateway(logger), logger)
	bookings, err := services.NewBookingService(txManager, bookingRepo, database.NewCarRepository(sqlxDB), wallet, feedbackRepo, notifications, nil, logger)
	require.NoError(t, err)
	feedback := services.NewFeedbackService(txManager, bookings, feedbackRepo, notifications, logger)

	bookingHandler := NewBookingHandler(bookings, feedback, logger)
	walletHandler := NewWalletHandler(wallet, logger)
	notificationHandler := NewNotificationHandler(notifications, logger)

	router := gin.New()
	api := router.Group("/api/v1", withActor(actor))
	api.POST("/bookings", bookingHandler.InitiateBooking)
	api.GET("/bookings/:id", bookingHandler.GetBooking)
	api.POST("/bookings/:id/cancel", bookingHandler.CancelBooking)
	api.GET("/wallet", walletHandler.GetWallet)
	api.POST("/admin/wallet/deposit", walletHandler.Deposit)
	api.POST("/admin/wallet/adjust", walletHandler.Adjust)
	api.GET("/notifications", notificationHandler.List)
	api.POST("/notifications/:id/read", notificationHandler.MarkRead)

	// unauthenticated route to check the actor guard
	router.GET("/anonymous/wallet", walletHandler.GetWallet)

	return &handlerFixture{
		router:  router,
		mock:    mock,
		actor:   actor,
		cleanup: func() { db.Close() },
	}
}

func (f *handlerFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func userActor() models.Actor {
	return models.Actor{AccountID: uuid.New(), Role: models.RoleUser}
}

var userRowColumns = []string{"id", "username", "email", "phone", "role", "wallet_balance", "created_at", "updated_at"}

// ============================================================================
// ERROR MAPPING
// ============================================================================

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", models.NewValidationError("start_date", "is required"), http.StatusBadRequest, "validation_error"},
		{"guard", models.NewGuardError("activate trip", "booking is not paid"), http.StatusConflict, "invalid_state"},
		{"slot taken", models.ErrSlotUnavailable, http.StatusConflict, "unavailable"},
		{"insufficient balance", models.ErrInsufficientBalance, http.StatusUnprocessableEntity, "wallet_error"},
		{"signature", models.ErrSignatureMismatch, http.StatusBadRequest, "signature_mismatch"},
		{"unknown order", models.ErrUnknownOrder, http.StatusNotFound, "unknown_order"},
		{"forbidden", models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"wrapped not found", errors.Join(errors.New("lookup"), models.ErrBookingNotFound), http.StatusNotFound, "not_found"},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, testLogger(), tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestRespondError_HidesInternalText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, testLogger(), errors.New("pq: password authentication failed"))

	assert.NotContains(t, w.Body.String(), "password")
}

// ============================================================================
// BOOKINGS
// ============================================================================

func TestBookingHandler_RequestParsing(t *testing.T) {
	f := setupHandlerTest(t, userActor())
	defer f.cleanup()

	t.Run("Invalid booking id", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/bookings/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid id")
	})

	t.Run("Missing fields", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/bookings", map[string]string{"car_id": uuid.NewString()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_request")
	})

	t.Run("Window in the wrong order", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/bookings", map[string]string{
			"car_id":     uuid.NewString(),
			"start_date": "2030-01-02T10:00",
			"end_date":   "2030-01-01T10:00",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBookingHandler_NotFound(t *testing.T) {
	f := setupHandlerTest(t, userActor())
	defer f.cleanup()

	bookingID := uuid.New()
	f.mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := f.do(http.MethodGet, "/api/v1/bookings/"+bookingID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "booking not found")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBookingHandler_CancelUnknownBookingRollsBack(t *testing.T) {
	f := setupHandlerTest(t, userActor())
	defer f.cleanup()

	bookingID := uuid.New()
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectRollback()

	w := f.do(http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/cancel", map[string]string{"reason": "plans changed"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// ============================================================================
// WALLET
// ============================================================================

func TestWalletHandler_GetWallet(t *testing.T) {
	f := setupHandlerTest(t, userActor())
	defer f.cleanup()

	now := time.Now()
	f.mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs(f.actor.AccountID).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(f.actor.AccountID.String(), "asha", "asha@example.com", nil, "user", "250.50", now, now))
	f.mock.ExpectQuery(`FROM wallet_transactions`).
		WithArgs(f.actor.AccountID, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "transaction_type", "amount", "balance_after",
			"description", "reference_type", "reference_id", "created_at"}))

	w := f.do(http.MethodGet, "/api/v1/wallet", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Balance      string        `json:"balance"`
		Transactions []interface{} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "250.5", body.Balance)
	assert.Empty(t, body.Transactions)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWalletHandler_Deposit(t *testing.T) {
	t.Run("Admin records a deposit", func(t *testing.T) {
		f := setupHandlerTest(t, models.Actor{AccountID: uuid.New(), Role: models.RoleAdmin})
		defer f.cleanup()

		userID := uuid.New()
		now := time.Now()
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(userID.String(), "asha", "asha@example.com", nil, "user", "100.00", now, now))
		f.mock.ExpectQuery(`INSERT INTO wallet_transactions`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
		f.mock.ExpectExec(`UPDATE users SET wallet_balance`).
			WithArgs(userID, "350").
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		w := f.do(http.MethodPost, "/api/v1/admin/wallet/deposit", map[string]string{
			"user_id":        userID.String(),
			"amount":         "250",
			"payment_method": "bank transfer",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "Wallet deposit via bank transfer")
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Account cannot credit itself", func(t *testing.T) {
		host := models.Actor{AccountID: uuid.New(), Role: models.RoleHost}
		f := setupHandlerTest(t, host)
		defer f.cleanup()

		w := f.do(http.MethodPost, "/api/v1/admin/wallet/deposit", map[string]string{
			"user_id":        host.AccountID.String(),
			"amount":         "1000000",
			"payment_method": "trust me",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Non numeric amount", func(t *testing.T) {
		f := setupHandlerTest(t, models.Actor{AccountID: uuid.New(), Role: models.RoleAdmin})
		defer f.cleanup()

		w := f.do(http.MethodPost, "/api/v1/admin/wallet/deposit", map[string]string{
			"user_id":        uuid.NewString(),
			"amount":         "ten",
			"payment_method": "cash",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"amount"`)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("No actor", func(t *testing.T) {
		f := setupHandlerTest(t, userActor())
		defer f.cleanup()

		w := f.do(http.MethodGet, "/anonymous/wallet", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestWalletHandler_AdjustRequiresAdmin(t *testing.T) {
	f := setupHandlerTest(t, userActor())
	defer f.cleanup()

	w := f.do(http.MethodPost, "/api/v1/admin/wallet/adjust", map[string]string{
		"user_id": uuid.NewString(),
		"amount":  "-50",
		"reason":  "duplicate deposit",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// ============================================================================
// NOTIFICATIONS
// ============================================================================

func TestNotificationHandler(t *testing.T) {
	t.Run("List unread", func(t *testing.T) {
		f := setupHandlerTest(t, userActor())
		defer f.cleanup()

		f.mock.ExpectQuery(`FROM notifications`).
			WithArgs(f.actor.AccountID, true, 50).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "message", "is_read", "created_at"}).
				AddRow(uuid.NewString(), f.actor.AccountID.String(), "Your trip for Toyota Innova (Booking #CR-20260310-ABCDEF) has started!", false, time.Now()))

		w := f.do(http.MethodGet, "/api/v1/notifications?unread=true", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "has started!")
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Mark read on someone else's notification", func(t *testing.T) {
		f := setupHandlerTest(t, userActor())
		defer f.cleanup()

		id := uuid.New()
		f.mock.ExpectExec(`UPDATE notifications SET is_read = TRUE WHERE id = \$1 AND user_id = \$2`).
			WithArgs(id, f.actor.AccountID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := f.do(http.MethodPost, "/api/v1/notifications/"+id.String()+"/read", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}
