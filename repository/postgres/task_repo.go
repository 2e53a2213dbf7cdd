package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
)

const taskColumns = `id, owner_id, title, description, due_date, amount, currency,
	payment_intent_id, refund_id, refund_error, status, completed_at, created_at, updated_at`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrTaskNotFound
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

func (r *taskRepository) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE payment_intent_id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, intentID))
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR owner_id::text = $1)
	  AND ($2 = '' OR status = $2)
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, filter.OwnerID, string(filter.Status), clampLimit(filter.Limit), clampOffset(filter.Offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (id, owner_id, title, description, due_date, amount, currency,
		payment_intent_id, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()), NOW())
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Description,
		task.DueDate,
		task.Amount,
		task.Currency,
		task.PaymentIntentID,
		string(task.Status),
		nullTime(task.CreatedAt),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		if isUniqueViolation(err, "tasks_payment_intent_id_key") {
			return nil, domain.ErrDuplicateIntent
		}
		return nil, err
	}

	return task, nil
}

// CompareAndSwap writes the mutable lifecycle columns guarded by the expected status.
func (r *taskRepository) CompareAndSwap(ctx context.Context, task *domain.Task, expected domain.TaskStatus) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET status = $3,
		refund_id = $4,
		refund_error = $5,
		completed_at = $6,
		updated_at = NOW()
	WHERE id = $1 AND status = $2
	RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		task.ID,
		string(expected),
		string(task.Status),
		nullString(task.RefundID),
		nullString(task.RefundError),
		task.CompletedAt,
	).Scan(&task.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return domain.ErrConcurrentModification
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		status      string
		refundID    *string
		refundError *string
	)

	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Amount,
		&task.Currency,
		&task.PaymentIntentID,
		&refundID,
		&refundError,
		&status,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	parsed, err := domain.ParseTaskStatus(status)
	if err != nil {
		return nil, err
	}
	task.Status = parsed
	if refundID != nil {
		task.RefundID = *refundID
	}
	if refundError != nil {
		task.RefundError = *refundError
	}

	return &task, nil
}
