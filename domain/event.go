package domain

import "time"

const (
	EventTaskCreated          = "task.created"
	EventTaskPaymentConfirmed = "task.payment_confirmed"
	EventTaskCompleted        = "task.completed"
	EventTaskCompletedLate    = "task.completed_late"
	EventTaskRefundFailed     = "task.refund_failed"
)

// EventTaskRefundUnreconciled marks a refund issued for a completion that
// lost its conditional update to another writer.
const EventTaskRefundUnreconciled = "task.refund_unreconciled"

// TaskEvent records a change applied to a task. Events are append-only.
type TaskEvent struct {
	ID         string            `json:"id"`
	TaskID     string            `json:"task_id"`
	OwnerID    string            `json:"owner_id"`
	Name       string            `json:"name"`
	FromStatus TaskStatus        `json:"from_status,omitempty"`
	ToStatus   TaskStatus        `json:"to_status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
