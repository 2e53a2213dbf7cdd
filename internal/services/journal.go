package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
	"github.com/fastygo/stakes/usecase"
)

// Journal is the EventJournal used by the lifecycle engine. Writes go through
// the processor so an unavailable database never blocks a transition.
type Journal struct {
	processor *JournalProcessor
	events    repository.EventRepository
}

func NewJournal(processor *JournalProcessor, events repository.EventRepository) *Journal {
	return &Journal{processor: processor, events: events}
}

func (j *Journal) Record(ctx context.Context, event domain.TaskEvent) error {
	if event.TaskID == "" || event.Name == "" {
		return domain.ErrInvalidPayload
	}
	// Assign the id up front so a replay after a partial write stays idempotent.
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if j.processor == nil {
		return j.events.Append(ctx, event)
	}
	return j.processor.Buffer(ctx, event)
}

// List merges stored events with those still waiting in the buffer.
func (j *Journal) List(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	stored, err := j.events.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	pending := j.processor.Pending(taskID)
	if len(pending) == 0 {
		return stored, nil
	}

	seen := make(map[string]struct{}, len(stored))
	for _, e := range stored {
		seen[e.ID] = struct{}{}
	}
	for _, e := range pending {
		if _, dup := seen[e.ID]; !dup {
			stored = append(stored, e)
		}
	}
	sort.SliceStable(stored, func(a, b int) bool {
		return stored[a].CreatedAt.Before(stored[b].CreatedAt)
	})
	return stored, nil
}

var _ usecase.EventJournal = (*Journal)(nil)
