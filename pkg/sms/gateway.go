package sms

import "context"

// Gateway sends text messages to mobile numbers
type Gateway interface {
	// Send delivers message to a single +91 number.
	// Returns the gateway transaction ID.
	Send(ctx context.Context, phone, message string) (int64, error)

	// GetName returns the name of the SMS gateway implementation
	GetName() string
}
