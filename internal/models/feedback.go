package models

import (
	"time"

	"github.com/google/uuid"
)

// HostRating is a 1..5 star rating left after a completed trip
type HostRating struct {
	ID        uuid.UUID `json:"id" db:"id"`
	HostID    uuid.UUID `json:"host_id" db:"host_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	BookingID uuid.UUID `json:"booking_id" db:"booking_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HostFeedback is a written message about a host
type HostFeedback struct {
	ID         uuid.UUID `json:"id" db:"id"`
	HostID     uuid.UUID `json:"host_id" db:"host_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	Subject    string    `json:"subject" db:"subject"`
	Message    string    `json:"message" db:"message"`
	IsResolved bool      `json:"is_resolved" db:"is_resolved"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SubmitFeedbackRequest carries a rating and an optional written feedback
type SubmitFeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate validates the feedback request
func (r *SubmitFeedbackRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return NewValidationError("rating", "rating must be between 1 and 5")
	}
	if len(r.Comment) > 500 {
		return NewValidationError("comment", "comment must be at most 500 characters")
	}
	if len(r.Subject) > 200 {
		return NewValidationError("subject", "subject must be at most 200 characters")
	}
	return nil
}
