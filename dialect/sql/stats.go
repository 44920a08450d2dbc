package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/syssam/veloq/dialect"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of row returning statements executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of other statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of failed statements.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow query is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

type statsConfig struct {
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// StatsOption configures the Stats interceptor.
type StatsOption func(*statsConfig)

// WithSlowThreshold sets the threshold for slow query detection.
// Statements taking longer than this duration are counted as slow.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(c *statsConfig) {
		c.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow queries.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(c *statsConfig) {
		c.slowHook = hook
	}
}

// WithSlowQueryLog logs slow queries to the default logger.
// This is a convenience wrapper around WithSlowQueryHook.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(_ context.Context, query string, args []any, duration time.Duration) {
		slog.Warn("slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// Stats returns an interceptor recording statistics into stats.
//
// Example:
//
//	stats := &sql.QueryStats{}
//	adapter := sql.NewAdapter(drv, sql.WithInterceptors(
//	    sql.Stats(stats, sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog()),
//	))
//
//	// Later, check statistics:
//	fmt.Println(stats.Stats())
func Stats(stats *QueryStats, opts ...StatsOption) dialect.Interceptor {
	c := &statsConfig{slowThreshold: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(c)
	}
	return dialect.InterceptFunc(func(next dialect.Executor) dialect.Executor {
		return dialect.ExecuteFunc(func(ctx context.Context, query string, args []any) (*dialect.Result, error) {
			start := time.Now()
			res, err := next.Execute(ctx, query, args)
			duration := time.Since(start)
			if returnsRows(query) {
				stats.TotalQueries.Add(1)
			} else {
				stats.TotalExecs.Add(1)
			}
			stats.TotalDuration.Add(int64(duration))
			if err != nil {
				stats.Errors.Add(1)
			}
			if duration > c.slowThreshold {
				stats.SlowQueries.Add(1)
				if c.slowHook != nil {
					c.slowHook(ctx, query, args, duration)
				}
			}
			return res, err
		})
	})
}

// Logging returns an interceptor logging every statement to logger, or to
// slog.Default if logger is nil. Successful statements are logged at debug
// level, failures at error level. Each statement gets a unique query_id.
func Logging(logger *slog.Logger) dialect.Interceptor {
	return dialect.InterceptFunc(func(next dialect.Executor) dialect.Executor {
		return dialect.ExecuteFunc(func(ctx context.Context, query string, args []any) (*dialect.Result, error) {
			log := logger
			if log == nil {
				log = slog.Default()
			}
			id := uuid.NewString()
			start := time.Now()
			res, err := next.Execute(ctx, query, args)
			attrs := []any{"query_id", id, "query", query, "args", args, "duration", time.Since(start)}
			if err != nil {
				log.ErrorContext(ctx, "query failed", append(attrs, "err", err)...)
				return res, err
			}
			if res != nil {
				attrs = append(attrs, "rows", res.RowCount)
			}
			log.DebugContext(ctx, "query executed", attrs...)
			return res, nil
		})
	})
}

// RateLimit returns an interceptor waiting on limiter before every
// statement. It fails with the context error if ctx is done first.
func RateLimit(limiter *rate.Limiter) dialect.Interceptor {
	return dialect.InterceptFunc(func(next dialect.Executor) dialect.Executor {
		return dialect.ExecuteFunc(func(ctx context.Context, query string, args []any) (*dialect.Result, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("dialect/sql: rate limit: %w", err)
			}
			return next.Execute(ctx, query, args)
		})
	})
}
