package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolMonitor periodically logs connection pool statistics. Exhaustion of
// the pool shows up here as acquired_conns pinned at max_conns together
// with a growing empty_acquire_count.
type PoolMonitor struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	interval time.Duration
	stop     chan struct{}
}

func NewPoolMonitor(pool *pgxpool.Pool, logger *zap.Logger, interval time.Duration) *PoolMonitor {
	return &PoolMonitor{
		pool:     pool,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (m *PoolMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.report()
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *PoolMonitor) report() {
	stats := m.pool.Stat()
	m.logger.Info("database pool stats",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
		zap.Int32("acquired_conns", stats.AcquiredConns()),
		zap.Int32("max_conns", stats.MaxConns()),
		zap.Int64("empty_acquire_count", stats.EmptyAcquireCount()),
		zap.Int64("canceled_acquire_count", stats.CanceledAcquireCount()),
		zap.Duration("acquire_duration", stats.AcquireDuration()),
	)
}

func (m *PoolMonitor) Stop() {
	close(m.stop)
}
