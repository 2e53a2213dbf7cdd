package usecase

import (
	"context"

	"github.com/fastygo/stakes/domain"
)

// PaymentGateway abstracts the external payment authority.
//
// Implementations classify failures at the boundary: domain.ErrIntentNotFound
// for unknown intents, a GATEWAY_UNAVAILABLE error for transport or provider
// failures and a REFUND_FAILED error when a refund is declined. They never
// return a partially populated result together with a nil error.
type PaymentGateway interface {
	Authorize(ctx context.Context, req domain.AuthorizeRequest) (*domain.PaymentIntent, error)
	GetStatus(ctx context.Context, intentID string) (domain.PaymentStatus, error)
	Refund(ctx context.Context, intentID, idempotencyKey string) (*domain.Refund, error)
	Cancel(ctx context.Context, intentID string) error
}

// EventJournal abstracts the task audit trail so use cases stay storage-agnostic.
type EventJournal interface {
	Record(ctx context.Context, event domain.TaskEvent) error
	List(ctx context.Context, taskID string) ([]domain.TaskEvent, error)
}
