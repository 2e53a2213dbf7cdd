package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
)

type EventRepository struct {
	mu     sync.Mutex
	events []domain.TaskEvent
	seen   map[string]struct{}
}

func NewEventRepository() *EventRepository {
	return &EventRepository{seen: make(map[string]struct{})}
}

var _ repository.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) Append(_ context.Context, event domain.TaskEvent) error {
	if event.TaskID == "" || event.Name == "" {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if _, dup := r.seen[event.ID]; dup {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.seen[event.ID] = struct{}{}
	r.events = append(r.events, event)
	return nil
}

func (r *EventRepository) ListByTask(_ context.Context, taskID string) ([]domain.TaskEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.TaskEvent, 0)
	for _, event := range r.events {
		if event.TaskID == taskID {
			out = append(out, event)
		}
	}
	return out, nil
}
