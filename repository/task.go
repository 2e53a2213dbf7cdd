package repository

import (
	"context"

	"github.com/fastygo/stakes/domain"
)

type TaskFilter struct {
	OwnerID string
	Status  domain.TaskStatus
	Limit   int
	Offset  int
}

// TaskRepository is the single source of truth for task state.
//
// CompareAndSwap persists task only if the stored status still equals expected.
// It returns domain.ErrTaskNotFound when the task does not exist and
// domain.ErrConcurrentModification when the stored status has moved on.
// Create returns domain.ErrDuplicateIntent when the payment intent is already bound.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	CompareAndSwap(ctx context.Context, task *domain.Task, expected domain.TaskStatus) error
}
