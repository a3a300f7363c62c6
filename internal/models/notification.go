package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxNotificationLength bounds persisted notification messages
const MaxNotificationLength = 255

// Notification is an in-app message for an account
type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TripSummary is the slice of a booking the reminder jobs need
type TripSummary struct {
	BookingID        uuid.UUID     `db:"booking_id"`
	BookingReference string        `db:"booking_reference"`
	Status           BookingStatus `db:"status"`
	UserID           uuid.UUID     `db:"user_id"`
	HostUserID       uuid.UUID     `db:"host_user_id"`
	CarMake          string        `db:"car_make"`
	CarModel         string        `db:"car_model"`
	StartDate        time.Time     `db:"start_date"`
	EndDate          time.Time     `db:"end_date"`
}
