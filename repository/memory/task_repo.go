// Package memory holds process-local repository implementations guarded by a mutex.
// They honour the same contracts as the Postgres repositories, including the
// conditional status update.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
)

type TaskRepository struct {
	mu       sync.RWMutex
	tasks    map[string]domain.Task
	byIntent map[string]string
	now      func() time.Time
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks:    make(map[string]domain.Task),
		byIntent: make(map[string]string),
		now:      time.Now,
	}
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

func (r *TaskRepository) GetByPaymentIntent(_ context.Context, intentID string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIntent[intentID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(r.tasks[id]), nil
}

func (r *TaskRepository) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.RLock()
	matched := make([]domain.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		if filter.OwnerID != "" && task.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		matched = append(matched, *cloneTask(task))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Task{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *TaskRepository) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.PaymentIntentID != "" {
		if _, taken := r.byIntent[task.PaymentIntentID]; taken {
			return nil, domain.ErrDuplicateIntent
		}
	}
	now := r.now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	r.tasks[task.ID] = *cloneTask(*task)
	if task.PaymentIntentID != "" {
		r.byIntent[task.PaymentIntentID] = task.ID
	}
	return task, nil
}

func (r *TaskRepository) CompareAndSwap(_ context.Context, task *domain.Task, expected domain.TaskStatus) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if stored.Status != expected {
		return domain.ErrConcurrentModification
	}

	stored.Status = task.Status
	stored.RefundID = task.RefundID
	stored.RefundError = task.RefundError
	stored.CompletedAt = task.CompletedAt
	stored.UpdatedAt = r.now()
	task.UpdatedAt = stored.UpdatedAt

	r.tasks[task.ID] = *cloneTask(stored)
	return nil
}

func cloneTask(task domain.Task) *domain.Task {
	out := task
	if task.CompletedAt != nil {
		completed := *task.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}
