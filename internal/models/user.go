package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRole is resolved once at authentication time
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleHost  AccountRole = "host"
	RoleAdmin AccountRole = "admin"
)

// IsValid checks if the role is one of the known roles
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleUser, RoleHost, RoleAdmin:
		return true
	}
	return false
}

// User is a wallet-holding account. Hosts act through their linked user.
type User struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Username      string          `json:"username" db:"username"`
	Email         string          `json:"email" db:"email"`
	Phone         *string         `json:"phone,omitempty" db:"phone"`
	Role          AccountRole     `json:"role" db:"role"`
	WalletBalance decimal.Decimal `json:"wallet_balance" db:"wallet_balance"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Host is a car owner profile linked to a user account
type Host struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	CompanyName *string   `json:"company_name,omitempty" db:"company_name"`
	Phone       *string   `json:"phone,omitempty" db:"phone"`
	IsVerified  bool      `json:"is_verified" db:"is_verified"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	AccountID uuid.UUID
	Role      AccountRole
	HostID    *uuid.UUID
}

// IsAdmin reports whether the actor has the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsHostOf reports whether the actor is the given host
func (a Actor) IsHostOf(hostID uuid.UUID) bool {
	return a.Role == RoleHost && a.HostID != nil && *a.HostID == hostID
}
