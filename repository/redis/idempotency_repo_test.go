package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
	redisRepo "github.com/fastygo/stakes/repository/redis"
)

func setup(t *testing.T, ttl time.Duration) (repository.IdempotencyRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisRepo.NewIdempotencyRepository(client, ttl), mr
}

func TestIdempotencyRoundTrip(t *testing.T) {
	repo, mr := setup(t, time.Hour)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1", "key-1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	require.NoError(t, repo.Save(ctx, &repository.IdempotencyRecord{
		OwnerID: "u1", Key: "key-1", TaskID: "t1", PaymentIntentID: "pi_1", ClientSecret: "sec",
	}))

	record, err := repo.Get(ctx, "u1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", record.TaskID)
	assert.Equal(t, "pi_1", record.PaymentIntentID)
	assert.Equal(t, "sec", record.ClientSecret)

	assert.True(t, mr.Exists("idempotency:task:u1:key-1"))
	assert.Equal(t, time.Hour, mr.TTL("idempotency:task:u1:key-1"))
}

func TestIdempotencyFirstWriteWins(t *testing.T) {
	repo, _ := setup(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &repository.IdempotencyRecord{OwnerID: "u1", Key: "k", TaskID: "t1"}))
	require.NoError(t, repo.Save(ctx, &repository.IdempotencyRecord{OwnerID: "u1", Key: "k", TaskID: "t2"}))

	record, err := repo.Get(ctx, "u1", "k")
	require.NoError(t, err)
	assert.Equal(t, "t1", record.TaskID)
}

func TestIdempotencyExpires(t *testing.T) {
	repo, mr := setup(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &repository.IdempotencyRecord{OwnerID: "u1", Key: "k", TaskID: "t1"}))
	mr.FastForward(2 * time.Minute)

	_, err := repo.Get(ctx, "u1", "k")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyRejectsIncompleteRecord(t *testing.T) {
	repo, _ := setup(t, time.Minute)
	err := repo.Save(context.Background(), &repository.IdempotencyRecord{Key: "k"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
