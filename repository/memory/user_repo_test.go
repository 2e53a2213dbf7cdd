package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/repository"
	"github.com/fastygo/stakes/repository/memory"
)

func TestUserRepositoryEmailIsCaseInsensitive(t *testing.T) {
	repo := memory.NewUserRepository()
	ctx := context.Background()

	user := &domain.User{Name: "Ada", Email: "Ada@Example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, user))
	assert.Equal(t, "ada@example.com", user.Email)

	got, err := repo.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	err = repo.Create(ctx, &domain.User{Name: "Other", Email: "ada@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestIdempotencyRepositoryFirstWriteWins(t *testing.T) {
	repo := memory.NewIdempotencyRepository(0)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1", "k")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	require.NoError(t, repo.Save(ctx, &repository.IdempotencyRecord{OwnerID: "u1", Key: "k", TaskID: "t1"}))
	require.NoError(t, repo.Save(ctx, &repository.IdempotencyRecord{OwnerID: "u1", Key: "k", TaskID: "t2"}))

	record, err := repo.Get(ctx, "u1", "k")
	require.NoError(t, err)
	assert.Equal(t, "t1", record.TaskID)

	_, err = repo.Get(ctx, "u2", "k")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound, "keys are scoped per owner")
}

func TestEventRepositoryDeduplicatesByID(t *testing.T) {
	repo := memory.NewEventRepository()
	ctx := context.Background()
	event := domain.TaskEvent{ID: "e1", TaskID: "t1", Name: domain.EventTaskCreated}

	require.NoError(t, repo.Append(ctx, event))
	require.NoError(t, repo.Append(ctx, event))

	events, err := repo.ListByTask(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	assert.ErrorIs(t, repo.Append(ctx, domain.TaskEvent{Name: "x"}), domain.ErrInvalidPayload)
}
