package transport

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateTaskRequest accepts amount as a JSON number or string in major units.
type CreateTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     string          `json:"dueDate"`
	Amount      decimal.Decimal `json:"amount"`
}

// ParseDueDate accepts RFC3339 timestamps or a bare YYYY-MM-DD date, which is
// read as the end of that day in UTC.
func (r CreateTaskRequest) ParseDueDate() (time.Time, bool) {
	raw := strings.TrimSpace(r.DueDate)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d.Add(24*time.Hour - time.Microsecond), true
	}
	return time.Time{}, false
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}
