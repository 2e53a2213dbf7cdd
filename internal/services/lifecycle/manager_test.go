package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	m.Register("second", func(context.Context) error { order = append(order, "second"); return errors.New("boom") })
	m.Register("third", func(context.Context) error { order = append(order, "third"); return nil })
	m.Register("ignored", nil)

	err := m.Shutdown(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"third", "second", "first"}, order)

	require.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
	assert.Len(t, order, 3)
}

func TestFailedComponentCancelsContext(t *testing.T) {
	m := New(time.Second, nil)
	ctx := m.Context(context.Background())

	m.Go("server", func() error { return errors.New("address in use") })

	select {
	case <-ctx.Done():
		assert.ErrorContains(t, context.Cause(ctx), "address in use")
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestShutdownCancelsContext(t *testing.T) {
	m := New(time.Second, nil)
	ctx := m.Context(context.Background())

	require.NoError(t, m.Shutdown(context.Background()))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}
