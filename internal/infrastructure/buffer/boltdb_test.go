package buffer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/stakes/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func event(taskID, name string) domain.TaskEvent {
	return domain.TaskEvent{TaskID: taskID, Name: name, ToStatus: domain.TaskStatusActive}
}

func TestEnqueueBatchOldestFirst(t *testing.T) {
	store := openStore(t)
	base := time.Now()

	require.NoError(t, store.Enqueue(Item{Event: event("t1", "second"), Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.Enqueue(Item{Event: event("t1", "first"), Timestamp: base}))
	require.NoError(t, store.Enqueue(Item{Event: event("t2", "third"), Timestamp: base.Add(2 * time.Second)}))

	items, err := store.GetBatch(2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Event.Name)
	assert.Equal(t, "second", items[1].Event.Name)
	assert.NotEmpty(t, items[0].Event.ID)
	assert.Equal(t, items[0].Event.ID, items[0].ID)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestRemoveAndRequeue(t *testing.T) {
	store := openStore(t)
	base := time.Now().Add(-time.Minute)

	require.NoError(t, store.Enqueue(Item{Event: event("t1", "a"), Timestamp: base}))
	require.NoError(t, store.Enqueue(Item{Event: event("t1", "b"), Timestamp: base.Add(time.Second)}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	failed := items[0]
	failed.Retries++
	failed.LastError = "db down"
	require.NoError(t, store.Requeue(failed))
	require.NoError(t, store.Remove(items[1]))

	items, err = store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Event.Name)
	assert.Equal(t, 1, items[0].Retries)
	assert.Equal(t, "db down", items[0].LastError)
}

func TestRemoveWithoutKeyFallsBackToID(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Enqueue(Item{ID: "fixed", Event: event("t1", "a")}))

	require.NoError(t, store.Remove(Item{ID: "fixed"}))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestPendingForTask(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Enqueue(Item{Event: event("t1", "a")}))
	require.NoError(t, store.Enqueue(Item{Event: event("t2", "b")}))

	items, err := store.PendingForTask("t1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Event.Name)
}

func TestCleanup(t *testing.T) {
	store := openStore(t)
	now := time.Now()
	require.NoError(t, store.Enqueue(Item{Event: event("t1", "old"), Timestamp: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Enqueue(Item{Event: event("t1", "new"), Timestamp: now}))

	require.NoError(t, store.Cleanup(now.Add(-24*time.Hour)))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].Event.Name)
}

func TestClosedStore(t *testing.T) {
	var store *Store
	assert.Error(t, store.Enqueue(Item{}))
	assert.NoError(t, store.Close())
}

func TestReopenKeepsQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path, "events")
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(Item{Event: event("t1", "a")}))
	require.NoError(t, store.Close())

	store, err = Open(path, "events")
	require.NoError(t, err)
	defer store.Close()

	items, err := store.GetBatch(0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, store.Remove(Item{ID: items[0].ID}))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}
