package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limited wraps a logger with a token bucket. Records dropped by the
// bucket are counted and reported as a "suppressed" attribute on the
// next record that gets through.
type Limited struct {
	logger     *slog.Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// NewLimited returns a Limited that lets through one record per interval
// with the given burst. A zero interval disables limiting.
func NewLimited(logger *slog.Logger, interval time.Duration, burst int) *Limited {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Log emits the record if the bucket allows it and reports whether it did.
func (l *Limited) Log(ctx context.Context, level slog.Level, msg string, args ...any) bool {
	if !l.logger.Enabled(ctx, level) {
		return false
	}
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return false
	}
	if n := l.suppressed.Swap(0); n > 0 {
		args = append(args, KeySuppressed, n)
	}
	l.logger.Log(ctx, level, msg, args...)
	return true
}

// Warn logs at warn level through the limiter.
func (l *Limited) Warn(msg string, args ...any) bool {
	return l.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Suppressed returns the number of records dropped since the last one
// that was emitted.
func (l *Limited) Suppressed() uint64 {
	return l.suppressed.Load()
}
