package locker

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
)

var ErrLockTimeout = errors.New("lock_timeout")

// Locker serializes work on a single key. Release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const DefaultWait = 10 * time.Second

func PackageKey(id snowflake.ID) string      { return "package:" + id.String() }
func StudentKey(id snowflake.ID) string      { return "student:" + id.String() }
func NotificationKey(id snowflake.ID) string { return "notification:" + id.String() }
func BillKey(id snowflake.ID) string         { return "bill:" + id.String() }

// instrumented wraps a Locker with wait-time metrics keyed by resource prefix.
type instrumented struct {
	next    Locker
	metrics *metrics.LockMetrics
	wait    time.Duration
}

// Instrument bounds every acquisition by wait and records contention.
func Instrument(next Locker, m *metrics.LockMetrics, wait time.Duration) Locker {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &instrumented{next: next, metrics: m, wait: wait}
}

func (l *instrumented) Acquire(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	start := time.Now()
	release, err := l.next.Acquire(waitCtx, key)
	l.metrics.ObserveLock(resourceOf(key), time.Since(start), err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrLockTimeout
		}
		return nil, err
	}
	return release, nil
}

func resourceOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
