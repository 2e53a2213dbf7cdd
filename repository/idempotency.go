package repository

import (
	"context"
	"time"
)

// IdempotencyRecord remembers the outcome of a create-task request keyed by the caller's key.
type IdempotencyRecord struct {
	OwnerID         string    `json:"owner_id"`
	Key             string    `json:"key"`
	TaskID          string    `json:"task_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ClientSecret    string    `json:"client_secret"`
	CreatedAt       time.Time `json:"created_at"`
}

// IdempotencyRepository stores records per (owner, key). Get returns
// domain.ErrIdempotencyKeyNotFound for unknown or expired keys. Save keeps the
// first record written for a key.
type IdempotencyRepository interface {
	Get(ctx context.Context, ownerID, key string) (*IdempotencyRecord, error)
	Save(ctx context.Context, record *IdempotencyRecord) error
}
