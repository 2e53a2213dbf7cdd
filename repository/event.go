package repository

import (
	"context"

	"github.com/fastygo/stakes/domain"
)

type EventRepository interface {
	Append(ctx context.Context, event domain.TaskEvent) error
	ListByTask(ctx context.Context, taskID string) ([]domain.TaskEvent, error)
}
