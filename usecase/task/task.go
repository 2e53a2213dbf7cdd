package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/pkg/logger"
	"github.com/fastygo/stakes/repository"
	"github.com/fastygo/stakes/usecase"
)

const (
	msgRefunded     = "task completed and payment refunded"
	msgRefundFailed = "task completed but refund failed"
	msgLate         = "task completed but deadline missed - no refund"
)

// Config tunes the lifecycle engine.
type Config struct {
	Currency       string
	GatewayTimeout time.Duration
	Now            func() time.Time
}

// UseCase is the task lifecycle engine. It coordinates task state with the
// payment gateway and never records a transition before the gateway call it
// depends on has returned.
type UseCase struct {
	tasks       repository.TaskRepository
	gateway     usecase.PaymentGateway
	idempotency repository.IdempotencyRepository
	journal     usecase.EventJournal
	logger      *zap.Logger
	currency    string
	timeout     time.Duration
	now         func() time.Time
}

func New(
	tasks repository.TaskRepository,
	gateway usecase.PaymentGateway,
	idempotency repository.IdempotencyRepository,
	journal usecase.EventJournal,
	logger *zap.Logger,
	cfg Config,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &UseCase{
		tasks:       tasks,
		gateway:     gateway,
		idempotency: idempotency,
		journal:     journal,
		logger:      logger,
		currency:    strings.ToLower(cfg.Currency),
		timeout:     cfg.GatewayTimeout,
		now:         cfg.Now,
	}
}

type CreateTaskInput struct {
	OwnerID        string
	Title          string
	Description    string
	DueDate        time.Time
	Amount         decimal.Decimal
	IdempotencyKey string
}

type CreateTaskResult struct {
	Task            *domain.Task `json:"task"`
	ClientSecret    string       `json:"clientSecret"`
	PaymentIntentID string       `json:"paymentIntentId"`
	Replayed        bool         `json:"-"`
}

type CompleteTaskResult struct {
	Task        *domain.Task   `json:"task"`
	Refund      *domain.Refund `json:"refund,omitempty"`
	RefundError string         `json:"refundError,omitempty"`
	Message     string         `json:"message"`
}

// CreateTask authorizes the stake and persists the task in pending_payment.
// No task is stored unless the gateway returned an intent.
func (uc *UseCase) CreateTask(ctx context.Context, in CreateTaskInput) (*CreateTaskResult, error) {
	if in.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, uc.logger).With(zap.String("owner_id", in.OwnerID))

	if in.IdempotencyKey != "" && uc.idempotency != nil {
		replay, err := uc.replay(ctx, in.OwnerID, in.IdempotencyKey)
		switch {
		case err == nil:
			log.Info("create task replayed", zap.String("task_id", replay.Task.ID))
			return replay, nil
		case !errors.Is(err, domain.ErrIdempotencyKeyNotFound) && !errors.Is(err, domain.ErrTaskNotFound):
			log.Warn("idempotency lookup failed", zap.Error(err))
		}
	}

	amountMinor := domain.ToMinorUnits(in.Amount)

	gwCtx, cancel := uc.gatewayContext(ctx)
	intent, err := uc.gateway.Authorize(gwCtx, domain.AuthorizeRequest{
		AmountMinor: amountMinor,
		Currency:    uc.currency,
		Metadata: map[string]string{
			"userId":    in.OwnerID,
			"taskTitle": in.Title,
		},
		IdempotencyKey: gatewayKey("authorize", in.OwnerID, in.IdempotencyKey),
	})
	cancel()
	if err != nil {
		log.Warn("payment authorization failed", zap.Error(err))
		return nil, uc.gatewayError("authorize", err)
	}
	if intent == nil || intent.ID == "" {
		return nil, domain.GatewayUnavailable("authorize", errors.New("gateway returned no payment intent"))
	}
	if intent.Status == domain.PaymentStatusCanceled {
		log.Warn("authorization returned a canceled intent", zap.String("payment_intent_id", intent.ID))
		if in.IdempotencyKey != "" {
			return nil, domain.NewError(domain.ErrCodeConflict,
				"idempotency key belongs to a canceled payment; retry with a new key")
		}
		return nil, domain.GatewayUnavailable("authorize", errors.New("gateway returned a canceled payment intent"))
	}

	task := &domain.Task{
		OwnerID:         in.OwnerID,
		Title:           in.Title,
		Description:     in.Description,
		DueDate:         in.DueDate.UTC(),
		Amount:          domain.FromMinorUnits(amountMinor),
		Currency:        uc.currency,
		PaymentIntentID: intent.ID,
		Status:          domain.TaskStatusPendingPayment,
		CreatedAt:       uc.now().UTC(),
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIntent) {
			existing, getErr := uc.tasks.GetByPaymentIntent(ctx, intent.ID)
			if getErr == nil && existing.IsOwnedBy(in.OwnerID) {
				log.Info("create task resolved to existing intent", zap.String("task_id", existing.ID))
				return &CreateTaskResult{Task: existing, ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID, Replayed: true}, nil
			}
			return nil, err
		}
		log.Error("task persistence failed after authorization", zap.String("payment_intent_id", intent.ID), zap.Error(err))
		uc.compensate(ctx, intent.ID, log)
		return nil, err
	}

	result := &CreateTaskResult{
		Task:            created,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}

	if in.IdempotencyKey != "" && uc.idempotency != nil {
		if err := uc.idempotency.Save(ctx, &repository.IdempotencyRecord{
			OwnerID:         in.OwnerID,
			Key:             in.IdempotencyKey,
			TaskID:          created.ID,
			PaymentIntentID: intent.ID,
			ClientSecret:    intent.ClientSecret,
		}); err != nil {
			log.Warn("failed to store idempotency key", zap.Error(err))
		}
	}

	uc.record(ctx, created, domain.EventTaskCreated, "", map[string]string{
		"payment_intent_id": intent.ID,
		"amount":            created.Amount.StringFixed(2),
		"currency":          created.Currency,
	})
	log.Info("task created", zap.String("task_id", created.ID), zap.String("payment_intent_id", intent.ID))
	return result, nil
}

// ConfirmPayment moves a pending task to active once the gateway reports the intent succeeded.
// A task that is already active is rejected rather than re-derived from the gateway.
func (uc *UseCase) ConfirmPayment(ctx context.Context, ownerID, taskID, intentID string) (*domain.Task, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, domain.ValidationError("paymentIntentId is required")
	}
	task, err := uc.loadOwned(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.PaymentIntentID != intentID {
		return nil, domain.WrapError(domain.ErrCodeNotFound, "task not found for payment intent", nil)
	}
	if task.Status != domain.TaskStatusPendingPayment {
		return nil, domain.InvalidTransition(task.ID, task.Status, domain.TaskStatusActive)
	}

	log := logger.FromContext(ctx, uc.logger).With(zap.String("task_id", task.ID))

	gwCtx, cancel := uc.gatewayContext(ctx)
	status, err := uc.gateway.GetStatus(gwCtx, intentID)
	cancel()
	if err != nil {
		log.Warn("payment status lookup failed", zap.Error(err))
		return nil, uc.gatewayError("status lookup", err)
	}
	if status != domain.PaymentStatusSucceeded {
		return nil, domain.NewError(domain.ErrCodePaymentNotCompleted,
			fmt.Sprintf("payment not completed: gateway reports %s", status))
	}

	from := task.Status
	if err := task.Transition(domain.TaskStatusActive, uc.now().UTC()); err != nil {
		return nil, err
	}
	if err := uc.tasks.CompareAndSwap(ctx, task, from); err != nil {
		log.Warn("confirm payment lost conditional update", zap.Error(err))
		return nil, err
	}

	uc.record(ctx, task, domain.EventTaskPaymentConfirmed, from, map[string]string{
		"payment_intent_id": intentID,
	})
	log.Info("payment confirmed")
	return task, nil
}

// CompleteTask finishes an active task. On time completion refunds the stake;
// a failed refund is captured on the task instead of failing the operation.
func (uc *UseCase) CompleteTask(ctx context.Context, ownerID, taskID string) (*CompleteTaskResult, error) {
	task, err := uc.loadOwned(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskStatusActive {
		return nil, domain.InvalidTransition(task.ID, task.Status, domain.TaskStatusCompleted)
	}

	log := logger.FromContext(ctx, uc.logger).With(zap.String("task_id", task.ID))

	now := uc.now().UTC()
	from := task.Status
	result := &CompleteTaskResult{Task: task}
	target := domain.TaskStatusCompletedLate
	result.Message = msgLate

	if task.IsOnTime(now) {
		target = domain.TaskStatusCompleted
		refund, err := uc.refund(ctx, task)
		if err != nil {
			log.Warn("refund failed, completing anyway", zap.Error(err))
			task.RefundError = err.Error()
			result.RefundError = task.RefundError
			result.Message = msgRefundFailed
		} else {
			task.RefundID = refund.ID
			result.Refund = refund
			result.Message = msgRefunded
		}
	}

	if err := task.Transition(target, now); err != nil {
		return nil, err
	}
	if err := uc.tasks.CompareAndSwap(ctx, task, from); err != nil {
		if task.RefundID != "" {
			log.Error("refund issued but completion lost conditional update",
				zap.String("refund_id", task.RefundID), zap.Error(err))
			uc.recordUnreconciled(ctx, task, err)
		}
		return nil, err
	}

	switch {
	case target == domain.TaskStatusCompletedLate:
		uc.record(ctx, task, domain.EventTaskCompletedLate, from, map[string]string{
			"due_date": task.DueDate.Format(time.RFC3339),
		})
	case task.RefundError != "":
		uc.record(ctx, task, domain.EventTaskCompleted, from, nil)
		uc.record(ctx, task, domain.EventTaskRefundFailed, target, map[string]string{
			"refund_error": task.RefundError,
		})
	default:
		uc.record(ctx, task, domain.EventTaskCompleted, from, map[string]string{
			"refund_id": task.RefundID,
		})
	}

	log.Info("task completed", zap.String("status", string(task.Status)))
	return result, nil
}

// ListTasks returns the caller's tasks.
func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	if filter.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	return uc.loadOwned(ctx, ownerID, taskID)
}

// ListEvents returns the audit trail of one of the caller's tasks.
func (uc *UseCase) ListEvents(ctx context.Context, ownerID, taskID string) ([]domain.TaskEvent, error) {
	if _, err := uc.loadOwned(ctx, ownerID, taskID); err != nil {
		return nil, err
	}
	if uc.journal == nil {
		return []domain.TaskEvent{}, nil
	}
	return uc.journal.List(ctx, taskID)
}

func (uc *UseCase) loadOwned(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, domain.ValidationError("task id is required")
	}
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsOwnedBy(ownerID) {
		return nil, domain.ErrNotOwner
	}
	return task, nil
}

func (uc *UseCase) replay(ctx context.Context, ownerID, key string) (*CreateTaskResult, error) {
	record, err := uc.idempotency.Get(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}
	task, err := uc.tasks.GetByID(ctx, record.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.IsOwnedBy(ownerID) {
		return nil, domain.ErrNotOwner
	}
	return &CreateTaskResult{
		Task:            task,
		ClientSecret:    record.ClientSecret,
		PaymentIntentID: record.PaymentIntentID,
		Replayed:        true,
	}, nil
}

func (uc *UseCase) refund(ctx context.Context, task *domain.Task) (*domain.Refund, error) {
	gwCtx, cancel := uc.gatewayContext(ctx)
	defer cancel()

	refund, err := uc.gateway.Refund(gwCtx, task.PaymentIntentID, "refund-"+task.ID)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.GatewayUnavailable("refund", err)
		}
		return nil, err
	}
	if refund == nil || refund.ID == "" {
		return nil, domain.NewError(domain.ErrCodeRefundFailed, "gateway returned no refund")
	}
	return refund, nil
}

// compensate cancels an intent whose task could not be stored so the hold is released.
func (uc *UseCase) compensate(ctx context.Context, intentID string, log *zap.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
	defer cancel()
	if err := uc.gateway.Cancel(cctx, intentID); err != nil {
		log.Error("failed to cancel orphaned payment intent", zap.String("payment_intent_id", intentID), zap.Error(err))
		return
	}
	log.Info("orphaned payment intent canceled", zap.String("payment_intent_id", intentID))
}

func (uc *UseCase) record(ctx context.Context, task *domain.Task, name string, from domain.TaskStatus, metadata map[string]string) {
	if uc.journal == nil {
		return
	}
	event := domain.TaskEvent{
		TaskID:     task.ID,
		OwnerID:    task.OwnerID,
		Name:       name,
		FromStatus: from,
		ToStatus:   task.Status,
		Metadata:   metadata,
		CreatedAt:  uc.now().UTC(),
	}
	if err := uc.journal.Record(ctx, event); err != nil {
		uc.logger.Warn("failed to journal task event",
			zap.String("task_id", task.ID), zap.String("event", name), zap.Error(err))
	}
}

// recordUnreconciled journals a refund that went out while another writer
// settled the task, so the stored status and the money disagree.
func (uc *UseCase) recordUnreconciled(ctx context.Context, attempted *domain.Task, cause error) {
	current := attempted
	if stored, err := uc.tasks.GetByID(ctx, attempted.ID); err == nil {
		current = stored
	}
	uc.record(ctx, current, domain.EventTaskRefundUnreconciled, domain.TaskStatusActive, map[string]string{
		"refund_id":        attempted.RefundID,
		"attempted_status": string(attempted.Status),
		"error":            cause.Error(),
	})
}

func (uc *UseCase) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, uc.timeout)
}

// gatewayError keeps classified gateway errors and maps everything else to GATEWAY_UNAVAILABLE.
func (uc *UseCase) gatewayError(op string, err error) error {
	if isTimeout(err) {
		return domain.GatewayUnavailable(op, err)
	}
	switch domain.CodeOf(err) {
	case domain.ErrCodeGatewayUnavailable, domain.ErrCodeNotFound, domain.ErrCodeValidation:
		return err
	default:
		return domain.GatewayUnavailable(op, err)
	}
}

func validateCreate(in CreateTaskInput) error {
	if in.Title == "" {
		return domain.ValidationError("title is required")
	}
	if in.DueDate.IsZero() {
		return domain.ValidationError("dueDate is required")
	}
	if !in.Amount.IsPositive() {
		return domain.ValidationError("amount must be positive")
	}
	if in.Amount.GreaterThan(domain.MaxAmount) {
		return domain.ValidationError("amount must not exceed " + domain.MaxAmount.StringFixed(2))
	}
	if domain.ToMinorUnits(in.Amount) < 1 {
		return domain.ValidationError("amount is smaller than the minimum chargeable unit")
	}
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func gatewayKey(op, ownerID, key string) string {
	if key == "" {
		return ""
	}
	return op + "-" + ownerID + "-" + key
}
