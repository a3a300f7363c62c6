package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventOrderCreated      PaymentEventType = "order_created"
	PaymentEventOrderFailed       PaymentEventType = "order_failed"
	PaymentEventCallbackReceived  PaymentEventType = "callback_received"
	PaymentEventSignatureMismatch PaymentEventType = "signature_mismatch"
	PaymentEventSuccess           PaymentEventType = "payment_success"
	PaymentEventFailed            PaymentEventType = "payment_failed"
	PaymentEventDuplicate         PaymentEventType = "duplicate_callback"
	PaymentEventBookingConfirmed  PaymentEventType = "booking_confirmed"
	PaymentEventExtensionMerged   PaymentEventType = "extension_merged"
	PaymentEventError             PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend    PaymentEventSource = "backend"
	PaymentSourceGatewayAPI PaymentEventSource = "razorpay_api"
	PaymentSourceCallback   PaymentEventSource = "razorpay_callback"
	PaymentSourceUser       PaymentEventSource = "user"
)

// PaymentPurpose distinguishes the initial booking payment from an extension
type PaymentPurpose string

const (
	PaymentPurposeBooking   PaymentPurpose = "booking"
	PaymentPurposeExtension PaymentPurpose = "extension"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return fmt.Errorf("unsupported JSONB source type %T", value)
}

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	BookingID *uuid.UUID      `json:"booking_id,omitempty" db:"booking_id"`
	Purpose   *PaymentPurpose `json:"purpose,omitempty" db:"purpose"`
	OrderID   *string         `json:"order_id,omitempty" db:"order_id"`
	PaymentID *string         `json:"payment_id,omitempty" db:"payment_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	Amount   decimal.NullDecimal `json:"amount,omitempty" db:"amount"`
	Currency *string             `json:"currency,omitempty" db:"currency"`

	Details      JSONB   `json:"details,omitempty" db:"details"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now().UTC(),
	}
}

// SetBooking sets the booking and payment purpose for the audit
func (pa *PaymentAudit) SetBooking(bookingID uuid.UUID, purpose PaymentPurpose) *PaymentAudit {
	pa.BookingID = &bookingID
	pa.Purpose = &purpose
	return pa
}

// SetGatewayIDs sets the gateway order and payment identifiers
func (pa *PaymentAudit) SetGatewayIDs(orderID, paymentID string) *PaymentAudit {
	if orderID != "" {
		pa.OrderID = &orderID
	}
	if paymentID != "" {
		pa.PaymentID = &paymentID
	}
	return pa
}

// SetAmount records the amount involved in the event
func (pa *PaymentAudit) SetAmount(amount decimal.Decimal, currency string) *PaymentAudit {
	pa.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
	pa.Currency = &currency
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetDetails stores structured context for the event
func (pa *PaymentAudit) SetDetails(details map[string]interface{}) *PaymentAudit {
	pa.Details = JSONB(details)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}
