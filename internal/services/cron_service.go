package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleInterval returns the gap between two consecutive runs of a six
// field schedule. The reminder windows are sized from it.
func ScheduleInterval(spec string) (time.Duration, error) {
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	next := schedule.Next(time.Now())
	return schedule.Next(next).Sub(next), nil
}

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	schedule  string
	reminders *ReminderService
	logger    *logrus.Logger
}

// NewCronService creates a new CronService. schedule uses the six field
// format with seconds.
func NewCronService(schedule string, reminders *ReminderService, logger *logrus.Logger) *CronService {
	c := cron.New(cron.WithParser(scheduleParser))

	return &CronService{
		cron:      c,
		schedule:  schedule,
		reminders: reminders,
		logger:    logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// "0 * * * * *" = at second 0 of every minute
	if _, err := s.cron.AddFunc(s.schedule, s.tripRemindersJob); err != nil {
		return fmt.Errorf("failed to schedule trip reminders job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: trip reminders")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) tripRemindersJob() {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()

	sent, err := s.reminders.SendTimedReminders(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Trip reminders job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"sent":     sent,
		"duration": time.Since(startTime).String(),
	}).Debug("[CRON] Trip reminders job finished")
}

// RunRemindersNow runs the reminders job immediately
func (s *CronService) RunRemindersNow() {
	s.logger.Info("[MANUAL] Running trip reminders now...")
	s.tripRemindersJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
