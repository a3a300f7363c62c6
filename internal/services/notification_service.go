package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/pkg/sms"
	"github.com/rentwheels/carshare-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// Notifier delivers messages to accounts. Delivery failures are logged by the
// implementation and never returned.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string)
	NotifyAdmins(ctx context.Context, message string)
}

// NotificationService stores in-app notifications and mirrors them by SMS
// when a gateway is configured
type NotificationService struct {
	store    NotificationStore
	accounts AccountStore
	gateway  sms.Gateway
	phones   *validator.PhoneValidator
	logger   *logrus.Logger
}

// NewNotificationService creates a new NotificationService. gateway may be nil.
func NewNotificationService(store NotificationStore, accounts AccountStore, gateway sms.Gateway, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		store:    store,
		accounts: accounts,
		gateway:  gateway,
		phones:   validator.NewPhoneValidator(),
		logger:   logger,
	}
}

// Notify persists a notification for the account and sends it by SMS
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, message string) {
	message = models.TruncateText(strings.TrimSpace(message), models.MaxNotificationLength)
	if message == "" {
		return
	}

	n := &models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Message: message,
	}
	if err := s.store.Create(ctx, n); err != nil {
		notificationFailures.WithLabelValues("in_app").Inc()
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to store notification")
	}

	if s.gateway != nil {
		s.sendSMS(ctx, userID, message)
	}
}

// NotifyAdmins notifies every admin account
func (s *NotificationService) NotifyAdmins(ctx context.Context, message string) {
	ids, err := s.accounts.ListIDsByRole(ctx, models.RoleAdmin)
	if err != nil {
		notificationFailures.WithLabelValues("in_app").Inc()
		s.logger.WithError(err).Error("Failed to list admin accounts")
		return
	}
	for _, id := range ids {
		s.Notify(ctx, id, message)
	}
}

func (s *NotificationService) sendSMS(ctx context.Context, userID uuid.UUID, message string) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Skipping SMS: account lookup failed")
		return
	}
	if account.Phone == nil || !s.phones.IsValid(*account.Phone) {
		return
	}

	if _, err := s.gateway.Send(ctx, *account.Phone, message); err != nil {
		notificationFailures.WithLabelValues("sms").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"gateway": s.gateway.GetName(),
		}).Error("Failed to send SMS notification")
	}
}

// List returns an account's notifications, newest first
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	notifications, err := s.store.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}

// MarkRead marks one notification as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}

// MarkAllRead marks all of an account's notifications as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
