package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a Postgres-backed task event journal.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

// Append is idempotent on the event id so replays from the buffer are harmless.
func (r *eventRepository) Append(ctx context.Context, event domain.TaskEvent) error {
	if event.TaskID == "" || event.Name == "" {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO task_events (id, task_id, owner_id, name, from_status, to_status, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TaskID,
		event.OwnerID,
		event.Name,
		nullString(string(event.FromStatus)),
		string(event.ToStatus),
		marshalMap(event.Metadata),
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *eventRepository) ListByTask(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return []domain.TaskEvent{}, nil
	}
	const query = `
	SELECT id, task_id, owner_id, name, COALESCE(from_status, ''), to_status, metadata, created_at
	FROM task_events
	WHERE task_id = $1
	ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.TaskEvent, 0)
	for rows.Next() {
		var (
			event    domain.TaskEvent
			from, to string
			metadata []byte
		)
		if err := rows.Scan(&event.ID, &event.TaskID, &event.OwnerID, &event.Name, &from, &to, &metadata, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.FromStatus = domain.TaskStatus(from)
		event.ToStatus = domain.TaskStatus(to)
		if event.Metadata, err = unmarshalMap(metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of event %s: %w", event.ID, err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
