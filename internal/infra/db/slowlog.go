package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type traceKey struct{}

type traceData struct {
	sql   string
	start time.Time
}

// SlowQueryLogger is a pgx tracer that warns about queries exceeding the
// threshold. Installed on the pool at construction; the unread aggregate
// and timeline queries are the usual suspects it exists to catch.
type SlowQueryLogger struct {
	logger    *zap.Logger
	threshold time.Duration
}

func NewSlowQueryLogger(logger *zap.Logger, threshold time.Duration) *SlowQueryLogger {
	return &SlowQueryLogger{logger: logger, threshold: threshold}
}

func (s *SlowQueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceData{sql: data.SQL, start: time.Now()})
}

func (s *SlowQueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	td, ok := ctx.Value(traceKey{}).(traceData)
	if !ok {
		return
	}

	elapsed := time.Since(td.start)
	if elapsed <= s.threshold {
		return
	}

	fields := []zap.Field{
		zap.Duration("duration", elapsed),
		zap.String("sql", td.sql),
		zap.Int64("rows", data.CommandTag.RowsAffected()),
	}
	if data.Err != nil {
		fields = append(fields, zap.Error(data.Err))
	}
	s.logger.Warn("slow query", fields...)
}
