package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Car is a listing owned by a host
type Car struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	HostID       uuid.UUID       `json:"host_id" db:"host_id"`
	HostUserID   uuid.UUID       `json:"-" db:"host_user_id"`
	Make         string          `json:"make" db:"make"`
	Model        string          `json:"model" db:"model"`
	Year         int             `json:"year" db:"year"`
	PricePerHour decimal.Decimal `json:"price_per_hour" db:"price_per_hour"`
	IsAvailable  bool            `json:"is_available" db:"is_available"`
	IsBlocked    bool            `json:"is_blocked" db:"is_blocked"`
}

// CanBeBooked checks if the listing accepts new bookings
func (c *Car) CanBeBooked() bool {
	return c.IsAvailable && !c.IsBlocked && c.PricePerHour.IsPositive()
}

// DisplayName returns "Make Model" for messages
func (c *Car) DisplayName() string {
	return fmt.Sprintf("%s %s", c.Make, c.Model)
}
