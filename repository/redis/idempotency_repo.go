package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
)

type idempotencyRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewIdempotencyRepository creates a Redis-backed store for create-task idempotency keys.
func NewIdempotencyRepository(client *redislib.Client, ttl time.Duration) repository.IdempotencyRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &idempotencyRepository{
		client: client,
		prefix: "idempotency:task:",
		ttl:    ttl,
	}
}

func (r *idempotencyRepository) Get(ctx context.Context, ownerID, key string) (*repository.IdempotencyRecord, error) {
	result, err := r.client.Get(ctx, r.key(ownerID, key)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrIdempotencyKeyNotFound
		}
		return nil, err
	}

	var record repository.IdempotencyRecord
	if err := json.Unmarshal([]byte(result), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *idempotencyRepository) Save(ctx context.Context, record *repository.IdempotencyRecord) error {
	if record == nil || record.OwnerID == "" || record.Key == "" {
		return domain.ErrInvalidPayload
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	// SETNX keeps the first outcome; a later writer for the same key is a replay.
	return r.client.SetNX(ctx, r.key(record.OwnerID, record.Key), payload, r.ttl).Err()
}

func (r *idempotencyRepository) key(ownerID, key string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, ownerID, key)
}
