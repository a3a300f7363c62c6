package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// ReminderHorizon bounds how far ahead the reminder queries look
const ReminderHorizon = 3 * time.Hour

// Lead times at which reminders go out
var reminderLeads = []time.Duration{2 * time.Hour, 1 * time.Hour}

var (
	upcomingStatuses = []models.BookingStatus{models.BookingStatusPaid, models.BookingStatusExtended}
	endingStatuses   = []models.BookingStatus{models.BookingStatusActive, models.BookingStatusExtended}
)

// ReminderService sends the timed trip reminders. It is driven by the cron
// service once per interval; a reminder fires in the tick whose window
// [lead, lead+interval) contains the time remaining, so each goes out once.
type ReminderService struct {
	trips    TripLister
	notifier Notifier
	clock    utils.Clock
	interval time.Duration
	logger   *logrus.Logger
}

// NewReminderService creates a new ReminderService
func NewReminderService(trips TripLister, notifier Notifier, clock utils.Clock, interval time.Duration, logger *logrus.Logger) *ReminderService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderService{
		trips:    trips,
		notifier: notifier,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// UpcomingTrips returns paid trips starting within the horizon
func (s *ReminderService) UpcomingTrips(ctx context.Context, within time.Duration) ([]*models.TripSummary, error) {
	now := s.clock.Now()
	return s.trips.ListStartingBetween(ctx, now, now.Add(within), upcomingStatuses)
}

// EndingSoon returns running trips ending within the horizon
func (s *ReminderService) EndingSoon(ctx context.Context, within time.Duration) ([]*models.TripSummary, error) {
	now := s.clock.Now()
	return s.trips.ListEndingBetween(ctx, now, now.Add(within), endingStatuses)
}

// leadFor returns the reminder lead whose window contains remaining
func (s *ReminderService) leadFor(remaining time.Duration) (time.Duration, bool) {
	for _, lead := range reminderLeads {
		if remaining >= lead && remaining < lead+s.interval {
			return lead, true
		}
	}
	return 0, false
}

func describeLead(lead time.Duration) string {
	hours := int(lead / time.Hour)
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

// SendTimedReminders sends start and end reminders due in this tick and
// returns how many went out. The tick is aligned to the interval so a late
// cron run still lands in the window it was scheduled for.
func (s *ReminderService) SendTimedReminders(ctx context.Context) (int, error) {
	now := s.clock.Now().Truncate(s.interval)
	sent := 0

	upcoming, err := s.UpcomingTrips(ctx, ReminderHorizon)
	if err != nil {
		return 0, fmt.Errorf("failed to load upcoming trips: %w", err)
	}
	for _, trip := range upcoming {
		lead, ok := s.leadFor(trip.StartDate.Sub(now))
		if !ok {
			continue
		}
		s.notifier.Notify(ctx, trip.UserID, fmt.Sprintf("Reminder: Your trip for %s %s (Booking #%s) starts in %s!",
			trip.CarMake, trip.CarModel, trip.BookingReference, describeLead(lead)))
		remindersSent.WithLabelValues("start").Inc()
		sent++
	}

	ending, err := s.EndingSoon(ctx, ReminderHorizon)
	if err != nil {
		return sent, fmt.Errorf("failed to load ending trips: %w", err)
	}
	for _, trip := range ending {
		lead, ok := s.leadFor(trip.EndDate.Sub(now))
		if !ok {
			continue
		}
		s.notifier.Notify(ctx, trip.UserID, fmt.Sprintf("Reminder: Your trip for %s %s (Booking #%s) ends in %s!",
			trip.CarMake, trip.CarModel, trip.BookingReference, describeLead(lead)))
		remindersSent.WithLabelValues("end").Inc()
		sent++
	}

	if sent > 0 {
		s.logger.WithField("sent", sent).Info("Trip reminders sent")
	}
	return sent, nil
}
