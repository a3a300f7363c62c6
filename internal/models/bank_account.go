package models

import (
	"time"

	"github.com/google/uuid"
)

// HostBankAccount is a payout destination for a host
type HostBankAccount struct {
	ID                uuid.UUID `json:"id" db:"id"`
	HostID            uuid.UUID `json:"host_id" db:"host_id"`
	BankName          string    `json:"bank_name" db:"bank_name"`
	AccountHolderName string    `json:"account_holder_name" db:"account_holder_name"`
	AccountNumber     string    `json:"-" db:"account_number_sealed"`
	AccountLast4      string    `json:"-" db:"account_last4"`
	IFSCCode          string    `json:"ifsc_code" db:"ifsc_code"`
	BranchName        *string   `json:"branch_name,omitempty" db:"branch_name"`
	IsPrimary         bool      `json:"is_primary" db:"is_primary"`
	IsVerified        bool      `json:"is_verified" db:"is_verified"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// BankAccountView is what clients see: the number is always masked
type BankAccountView struct {
	ID                  uuid.UUID `json:"id"`
	BankName            string    `json:"bank_name"`
	AccountHolderName   string    `json:"account_holder_name"`
	MaskedAccountNumber string    `json:"account_number"`
	IFSCCode            string    `json:"ifsc_code"`
	BranchName          *string   `json:"branch_name,omitempty"`
	IsPrimary           bool      `json:"is_primary"`
	IsVerified          bool      `json:"is_verified"`
	CreatedAt           time.Time `json:"created_at"`
}

// AddBankAccountRequest represents a new payout destination
type AddBankAccountRequest struct {
	BankName          string  `json:"bank_name" validate:"required,max=100"`
	AccountHolderName string  `json:"account_holder_name" validate:"required,max=100"`
	AccountNumber     string  `json:"account_number" validate:"required,numeric,min=9,max=18"`
	IFSCCode          string  `json:"ifsc_code" validate:"required,len=11,alphanum"`
	BranchName        *string `json:"branch_name" validate:"omitempty,max=100"`
	MakePrimary       bool    `json:"make_primary"`
}
