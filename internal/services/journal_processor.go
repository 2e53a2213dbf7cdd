package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/internal/infrastructure/buffer"
	"github.com/fastygo/stakes/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// JournalProcessor replays buffered task events into the primary journal.
type JournalProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	events  repository.EventRepository
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewJournalProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	events repository.EventRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *JournalProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jp := &JournalProcessor{
		store:   store,
		monitor: monitor,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = jp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := jp.Drain(ctx); err != nil {
			jp.logger.Error("journal drain failed", zap.Error(err))
		}
	})

	return jp
}

// Start launches the cron scheduler.
func (jp *JournalProcessor) Start() {
	if jp == nil || jp.cron == nil {
		return
	}
	jp.cron.Start()
	jp.logger.Info("journal processor started")
}

// Stop waits for a running drain to finish or ctx to expire.
func (jp *JournalProcessor) Stop(ctx context.Context) {
	if jp == nil || jp.cron == nil {
		return
	}
	stopCtx := jp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	jp.logger.Info("journal processor stopped")
}

// Drain writes one batch of buffered events. Events that keep failing are
// dropped after MaxRetries attempts and logged in full.
func (jp *JournalProcessor) Drain(ctx context.Context) error {
	if jp == nil || jp.store == nil {
		return nil
	}
	if jp.monitor != nil && !jp.monitor.IsOnline() {
		jp.logger.Debug("skipping journal drain (offline)")
		return nil
	}

	if jp.cfg.Retention > 0 {
		if err := jp.store.Cleanup(time.Now().Add(-jp.cfg.Retention)); err != nil {
			jp.logger.Warn("journal buffer cleanup failed", zap.Error(err))
		}
	}

	items, err := jp.store.GetBatch(jp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := jp.events.Append(ctx, item.Event); err != nil {
			item.Retries++
			item.LastError = err.Error()
			if item.Retries >= jp.cfg.MaxRetries {
				jp.logger.Error("dropping journal event (max retries reached)",
					zap.String("event_id", item.Event.ID),
					zap.String("task_id", item.Event.TaskID),
					zap.String("event", item.Event.Name),
					zap.Error(err))
				if err := jp.store.Remove(item); err != nil {
					jp.logger.Warn("failed to remove journal event", zap.Error(err))
				}
				continue
			}
			if err := jp.store.Requeue(item); err != nil {
				jp.logger.Error("failed to requeue journal event", zap.Error(err))
			}
			continue
		}

		if err := jp.store.Remove(item); err != nil {
			jp.logger.Warn("failed to purge replayed journal event", zap.Error(err))
		}
	}
	return nil
}

// Buffer writes the event immediately when online and falls back to the local buffer.
func (jp *JournalProcessor) Buffer(ctx context.Context, event domain.TaskEvent) error {
	if jp == nil || jp.store == nil {
		return fmt.Errorf("journal processor not configured")
	}

	if jp.monitor == nil || jp.monitor.IsOnline() {
		err := jp.events.Append(ctx, event)
		if err == nil {
			return nil
		}
		jp.logger.Warn("journal append failed, buffering", zap.String("task_id", event.TaskID), zap.Error(err))
	}
	return jp.store.Enqueue(buffer.Item{Event: event})
}

// Pending returns buffered, not yet replayed events for a task.
func (jp *JournalProcessor) Pending(taskID string) []domain.TaskEvent {
	if jp == nil || jp.store == nil {
		return nil
	}
	items, err := jp.store.PendingForTask(taskID)
	if err != nil {
		jp.logger.Warn("failed to read buffered journal events", zap.Error(err))
		return nil
	}
	events := make([]domain.TaskEvent, 0, len(items))
	for _, item := range items {
		events = append(events, item.Event)
	}
	return events
}

// Size returns the number of buffered items.
func (jp *JournalProcessor) Size() int {
	if jp == nil || jp.store == nil {
		return 0
	}
	size, err := jp.store.Size()
	if err != nil {
		return 0
	}
	return size
}
