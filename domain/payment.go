package domain

import "fmt"

// PaymentStatus is the gateway-reported state of a payment intent.
type PaymentStatus string

const (
	PaymentStatusSucceeded             PaymentStatus = "succeeded"
	PaymentStatusProcessing            PaymentStatus = "processing"
	PaymentStatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	PaymentStatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	PaymentStatusRequiresAction        PaymentStatus = "requires_action"
	PaymentStatusRequiresCapture       PaymentStatus = "requires_capture"
	PaymentStatusCanceled              PaymentStatus = "canceled"
)

// ParsePaymentStatus rejects statuses this service does not understand.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(raw); s {
	case PaymentStatusSucceeded,
		PaymentStatusProcessing,
		PaymentStatusRequiresPaymentMethod,
		PaymentStatusRequiresConfirmation,
		PaymentStatusRequiresAction,
		PaymentStatusRequiresCapture,
		PaymentStatusCanceled:
		return s, nil
	default:
		return "", fmt.Errorf("unrecognized payment status %q", raw)
	}
}

// PaymentIntent is the result of authorizing a stake with the gateway.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       PaymentStatus
	AmountMinor  int64
	Currency     string
}

// Refund is the result of returning a stake.
type Refund struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount_minor"`
	Status      string `json:"status"`
}

// AuthorizeRequest describes the hold requested when a task is created.
type AuthorizeRequest struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}
