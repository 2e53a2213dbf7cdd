package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatus is a state of the staked task lifecycle.
type TaskStatus string

const (
	TaskStatusPendingPayment TaskStatus = "pending_payment"
	TaskStatusActive         TaskStatus = "active"
	TaskStatusCompleted      TaskStatus = "completed"
	TaskStatusCompletedLate  TaskStatus = "completed_late"
)

var minorUnitsPerMajor = decimal.NewFromInt(100)

// MaxAmount is the largest stake the tasks.amount NUMERIC(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// ParseTaskStatus validates a status coming from storage or query parameters.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch s := TaskStatus(raw); s {
	case TaskStatusPendingPayment, TaskStatusActive, TaskStatusCompleted, TaskStatusCompletedLate:
		return s, nil
	default:
		return "", ValidationError(fmt.Sprintf("unknown task status %q", raw))
	}
}

// IsTerminal reports whether no further transition is allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCompletedLate
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPendingPayment:
		return to == TaskStatusActive
	case TaskStatusActive:
		return to == TaskStatusCompleted || to == TaskStatusCompletedLate
	default:
		return false
	}
}

// InvalidTransition builds the error returned when a command is not legal from the current state.
func InvalidTransition(taskID string, from, to TaskStatus) *Error {
	return NewError(ErrCodeInvalidTransition,
		fmt.Sprintf("task %s cannot move from %s to %s", taskID, from, to))
}

// Task is one staked commitment: money held until the owner completes it.
type Task struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	DueDate         time.Time       `json:"due_date"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentIntentID string          `json:"payment_intent_id"`
	RefundID        string          `json:"refund_id,omitempty"`
	RefundError     string          `json:"refund_error,omitempty"`
	Status          TaskStatus      `json:"status"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AmountMinor converts the stake to currency minor units (cents), rounding half away from zero.
func (t *Task) AmountMinor() int64 {
	return ToMinorUnits(t.Amount)
}

// IsOwnedBy reports whether ownerID created the task.
func (t *Task) IsOwnedBy(ownerID string) bool {
	return t != nil && ownerID != "" && t.OwnerID == ownerID
}

// IsOnTime reports whether completing at now meets the deadline. The deadline itself counts as on time.
func (t *Task) IsOnTime(now time.Time) bool {
	return !now.After(t.DueDate)
}

// Transition moves the task to the given status, enforcing the lifecycle edges.
func (t *Task) Transition(to TaskStatus, at time.Time) error {
	if !CanTransition(t.Status, to) {
		return InvalidTransition(t.ID, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = at
	if to.IsTerminal() {
		completed := at
		t.CompletedAt = &completed
	}
	return nil
}

// ToMinorUnits converts a major-unit amount into minor units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

// FromMinorUnits converts minor units back into a major-unit amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorUnitsPerMajor)
}
