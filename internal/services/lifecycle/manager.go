package lifecycle

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc releases one component.
type ShutdownFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager owns process lifetime: it turns SIGINT/SIGTERM or a failed
// background component into cancellation, then stops components in reverse
// registration order within a shared deadline.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	hooks    []hook
	stopped  bool
	cancel   context.CancelCauseFunc
	failures chan error
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout:  timeout,
		logger:   logger,
		failures: make(chan error, 1),
	}
}

// Context returns a context cancelled on the first termination signal or
// background failure.
func (m *Manager) Context(parent context.Context) context.Context {
	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	ctx, cancel := context.WithCancelCause(sigCtx)

	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		defer stop()
		select {
		case <-sigCtx.Done():
			m.logger.Info("shutdown signal received")
			cancel(sigCtx.Err())
		case err := <-m.failures:
			m.logger.Error("component failed, shutting down", zap.Error(err))
			cancel(err)
		case <-ctx.Done():
		}
	}()
	return ctx
}

// Register adds a shutdown hook. Hooks run in reverse order.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Go runs a long-lived component. A non-nil return triggers shutdown.
func (m *Manager) Go(name string, run func() error) {
	go func() {
		if err := run(); err != nil {
			select {
			case m.failures <- errors.Join(errors.New(name), err):
			default:
			}
		}
	}()
}

// Shutdown runs every hook once, even if an earlier one failed.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	hooks := append([]hook(nil), m.hooks...)
	if m.cancel != nil {
		m.cancel(context.Canceled)
	}
	m.mu.Unlock()

	var result error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", h.name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", h.name), zap.Duration("took", time.Since(start)))
	}
	return result
}
