package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/models"
)

// FeedbackRepository handles host ratings and written feedback
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// HasRating reports whether the booking already has a rating
func (r *FeedbackRepository) HasRating(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM host_ratings WHERE booking_id = $1)`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to check host rating: %w", err)
	}
	return exists, nil
}

// HasFeedback reports whether the booking already has written feedback
func (r *FeedbackRepository) HasFeedback(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM host_feedbacks WHERE booking_id = $1)`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to check host feedback: %w", err)
	}
	return exists, nil
}

// CreateRating inserts a rating
func (r *FeedbackRepository) CreateRating(ctx context.Context, rating *models.HostRating) error {
	err := conn(ctx, r.db).QueryRowxContext(ctx, `
		INSERT INTO host_ratings (id, host_id, user_id, booking_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		rating.ID, rating.HostID, rating.UserID, rating.BookingID, rating.Rating, rating.Comment,
	).Scan(&rating.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create host rating: %w", err)
	}
	return nil
}

// CreateFeedback inserts written feedback
func (r *FeedbackRepository) CreateFeedback(ctx context.Context, fb *models.HostFeedback) error {
	err := conn(ctx, r.db).QueryRowxContext(ctx, `
		INSERT INTO host_feedbacks (id, host_id, user_id, booking_id, subject, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		fb.ID, fb.HostID, fb.UserID, fb.BookingID, fb.Subject, fb.Message,
	).Scan(&fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create host feedback: %w", err)
	}
	return nil
}

// AverageRating returns the host's mean rating and the number of ratings
func (r *FeedbackRepository) AverageRating(ctx context.Context, hostID uuid.UUID) (float64, int, error) {
	var row struct {
		Average float64 `db:"average"`
		Count   int     `db:"count"`
	}
	err := conn(ctx, r.db).GetContext(ctx, &row,
		`SELECT COALESCE(AVG(rating), 0)::float8 AS average, COUNT(*) AS count FROM host_ratings WHERE host_id = $1`,
		hostID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute host rating: %w", err)
	}
	return row.Average, row.Count, nil
}
