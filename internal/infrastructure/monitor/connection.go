package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type postgresPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) *redislib.StatusCmd
}

type backlogSizer interface {
	Size() (int, error)
}

const (
	probePostgres = "postgresql"
	probeRedis    = "redis"
	probeJournal  = "journal"
)

type probe struct {
	name    string
	timeout time.Duration
	check   func(ctx context.Context) error
}

// Monitor caches dependency reachability for the health endpoint and the
// journal processor. Request paths read the cache and never probe.
type Monitor struct {
	probes   []probe
	journal  backlogSizer
	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	status Status
}

func New(pg postgresPinger, redis redisPinger, journal backlogSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Monitor{journal: journal, interval: interval, logger: logger}
	if pg != nil {
		m.probes = append(m.probes, probe{name: probePostgres, timeout: 3 * time.Second, check: pg.Ping})
	}
	if redis != nil {
		m.probes = append(m.probes, probe{name: probeRedis, timeout: 2 * time.Second, check: func(ctx context.Context) error {
			return redis.Ping(ctx).Err()
		}})
	}
	return m
}

// Run refreshes the status every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// IsOnline reports whether Postgres answered the last probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Refresh runs every probe once, concurrently, and swaps in the new status.
func (m *Monitor) Refresh(ctx context.Context) {
	results := make([]error, len(m.probes))
	var wg sync.WaitGroup
	for i, p := range m.probes {
		wg.Add(1)
		go func(i int, p probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			results[i] = p.check(pctx)
		}(i, p)
	}
	wg.Wait()

	next := Status{LastCheck: time.Now()}
	for i, p := range m.probes {
		ok := results[i] == nil
		switch p.name {
		case probePostgres:
			next.PostgreSQL = ok
		case probeRedis:
			next.Redis = ok
		}
		if !ok {
			next.setError(p.name, results[i])
		}
	}
	if m.journal != nil {
		size, err := m.journal.Size()
		next.Journal = err == nil
		next.JournalBacklog = size
		if err != nil {
			next.setError(probeJournal, err)
		}
	}

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	if prev.LastCheck.IsZero() {
		return
	}
	if prev.PostgreSQL != next.PostgreSQL {
		m.logger.Warn("postgres availability changed", zap.Bool("online", next.PostgreSQL))
	}
	if prev.Redis != next.Redis {
		m.logger.Warn("redis availability changed", zap.Bool("online", next.Redis))
	}
}
