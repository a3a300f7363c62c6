package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rentwheels/carshare-backend/internal/config"
	"github.com/rentwheels/carshare-backend/internal/database"
	"github.com/rentwheels/carshare-backend/internal/handlers"
	"github.com/rentwheels/carshare-backend/internal/middleware"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/rentwheels/carshare-backend/internal/utils"
	"github.com/rentwheels/carshare-backend/pkg/jwt"
	"github.com/rentwheels/carshare-backend/pkg/sms"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting RentWheels car-share backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if err := utils.SetLocalZone(cfg.Server.Timezone); err != nil {
		logger.Fatalf("Failed to set timezone: %v", err)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(migrateCtx, db.DB, logger)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Repositories
	txManager := database.NewTxManager(db.DB)
	userRepository := database.NewUserRepository(db.DB)
	carRepository := database.NewCarRepository(db.DB)
	bookingRepository := database.NewBookingRepository(db.DB)
	walletRepository := database.NewWalletRepository(db.DB)
	bankAccountRepository := database.NewBankAccountRepository(db.DB)
	feedbackRepository := database.NewFeedbackRepository(db.DB)
	notificationRepository := database.NewNotificationRepository(db.DB)
	paymentAuditRepository := database.NewPaymentAuditRepository(db.DB, logger)

	sealer, err := utils.NewSealer(cfg.Security.BankAccountKey)
	if err != nil {
		logger.Fatalf("Failed to initialise bank account sealer: %v", err)
	}

	var smsGateway sms.Gateway
	if cfg.SMS.Mode == "production" {
		logger.Info("SMS gateway in production mode")
		smsGateway = sms.NewHTTPGateway(sms.HTTPConfig{
			APIURL:   cfg.SMS.APIURL,
			Username: cfg.SMS.Username,
			Password: cfg.SMS.Password,
			SenderID: cfg.SMS.SenderID,
		})
	} else {
		logger.Info("SMS gateway in development mode (messages are only logged)")
		smsGateway = sms.NewLogGateway(logger)
	}

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)
	walletService := services.NewWalletService(txManager, userRepository, walletRepository, bankAccountRepository, logger)
	notificationService := services.NewNotificationService(notificationRepository, userRepository, smsGateway, logger)
	bookingService, err := services.NewBookingService(
		txManager,
		bookingRepository,
		carRepository,
		walletService,
		feedbackRepository,
		notificationService,
		utils.SystemClock{},
		logger,
	)
	if err != nil {
		logger.Fatalf("Failed to initialise booking service: %v", err)
	}
	feedbackService := services.NewFeedbackService(txManager, bookingService, feedbackRepository, notificationService, logger)
	razorpayService := services.NewRazorpayService(&cfg.Payment, logger)
	paymentService := services.NewPaymentService(bookingService, razorpayService, paymentAuditRepository, logger)
	bankAccountService := services.NewBankAccountService(txManager, bankAccountRepository, userRepository, sealer, logger)

	reminderInterval, err := services.ScheduleInterval(cfg.Scheduler.ReminderSchedule)
	if err != nil {
		logger.Fatalf("Invalid reminder schedule: %v", err)
	}
	reminderService := services.NewReminderService(bookingRepository, notificationService, utils.SystemClock{}, reminderInterval, logger)
	cronService := services.NewCronService(cfg.Scheduler.ReminderSchedule, reminderService, logger)
	if cfg.Scheduler.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	} else {
		logger.Info("Scheduler disabled, trip reminders will not be sent")
	}
	logger.Info("Services initialized")

	// Handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, feedbackService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	walletHandler := handlers.NewWalletHandler(walletService, logger)
	bankAccountHandler := handlers.NewBankAccountHandler(bankAccountService, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(jwtService, logger)
	v1 := router.Group("/api/v1")
	v1.GET("/hosts/:id/rating", bookingHandler.HostRating)

	bookings := v1.Group("/bookings", auth)
	{
		bookings.POST("", bookingHandler.InitiateBooking)
		bookings.GET("", bookingHandler.ListBookings)
		bookings.GET("/:id", bookingHandler.GetBooking)
		bookings.POST("/:id/activate", bookingHandler.ActivateTrip)
		bookings.POST("/:id/complete", bookingHandler.CompleteTrip)
		bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
		bookings.POST("/:id/extension", bookingHandler.RequestExtension)
		bookings.POST("/:id/extension/approve", middleware.RequireHostProfile(userRepository, logger), bookingHandler.ApproveExtension)
		bookings.POST("/:id/extension/reject", middleware.RequireHostProfile(userRepository, logger), bookingHandler.RejectExtension)
		bookings.GET("/:id/feedback-eligibility", bookingHandler.FeedbackEligibility)
		bookings.POST("/:id/feedback", bookingHandler.SubmitFeedback)
	}

	payments := v1.Group("/payments", auth)
	{
		payments.POST("/bookings/:id/order", paymentHandler.CreateBookingOrder)
		payments.POST("/bookings/:id/extension-order", paymentHandler.CreateExtensionOrder)
		payments.POST("/callback", paymentHandler.Callback)
		payments.POST("/failure", paymentHandler.Failure)
	}

	wallet := v1.Group("/wallet", auth)
	{
		wallet.GET("", walletHandler.GetWallet)
		wallet.GET("/transactions", walletHandler.ListTransactions)
		wallet.POST("/withdraw", middleware.RequireRole(models.RoleHost), walletHandler.Withdraw)
	}

	hostBank := v1.Group("/host/bank-accounts", auth, middleware.RequireHostProfile(userRepository, logger))
	{
		hostBank.GET("", bankAccountHandler.List)
		hostBank.POST("", bankAccountHandler.Add)
		hostBank.PUT("/:id/primary", bankAccountHandler.SetPrimary)
		hostBank.DELETE("/:id", bankAccountHandler.Remove)
	}

	notifications := v1.Group("/notifications", auth)
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	admin := v1.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/wallet/deposit", walletHandler.Deposit)
		admin.POST("/wallet/adjust", walletHandler.Adjust)
		admin.GET("/wallet/:user_id/balance-check", walletHandler.BalanceCheck)
		admin.POST("/wallet/:user_id/reconcile", walletHandler.Reconcile)
		admin.POST("/bank-accounts/:id/verify", bankAccountHandler.Verify)
		admin.GET("/jobs", func(c *gin.Context) {
			c.JSON(http.StatusOK, cronService.GetJobStatus())
		})
		admin.POST("/jobs/reminders/run", func(c *gin.Context) {
			go cronService.RunRemindersNow()
			c.JSON(http.StatusAccepted, gin.H{"message": "Trip reminders job started"})
		})
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cfg.Scheduler.Enabled {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger logs each request once it completes
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         utils.GetRealIP(c),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if actor, ok := middleware.GetActor(c); ok {
			fields["account_id"] = actor.AccountID
			fields["role"] = actor.Role
		}

		entry := logger.WithFields(fields)
		for i, err := range c.Errors {
			entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
		}

		status := c.Writer.Status()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler reports database reachability
func healthCheckHandler(db *database.PostgresDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
