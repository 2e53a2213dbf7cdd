package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
)

type IdempotencyRepository struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]repository.IdempotencyRecord
	now     func() time.Time
}

func NewIdempotencyRepository(ttl time.Duration) *IdempotencyRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyRepository{
		ttl:     ttl,
		records: make(map[string]repository.IdempotencyRecord),
		now:     time.Now,
	}
}

var _ repository.IdempotencyRepository = (*IdempotencyRepository)(nil)

func (r *IdempotencyRepository) Get(_ context.Context, ownerID, key string) (*repository.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[ownerID+":"+key]
	if !ok || r.now().Sub(record.CreatedAt) > r.ttl {
		return nil, domain.ErrIdempotencyKeyNotFound
	}
	return &record, nil
}

func (r *IdempotencyRepository) Save(_ context.Context, record *repository.IdempotencyRecord) error {
	if record == nil || record.OwnerID == "" || record.Key == "" {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := record.OwnerID + ":" + record.Key
	if existing, ok := r.records[id]; ok && r.now().Sub(existing.CreatedAt) <= r.ttl {
		return nil
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	r.records[id] = *record
	return nil
}
