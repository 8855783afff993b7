package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucketState struct {
	tokens float64
	ts     time.Time
}

// MemoryBucket is the single-instance fallback when no redis is configured.
type MemoryBucket struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*bucketState
}

func NewMemoryBucket(now func() time.Time) *MemoryBucket {
	if now == nil {
		now = time.Now
	}
	return &MemoryBucket{now: now, buckets: make(map[string]*bucketState)}
}

func (m *MemoryBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if err := validate(key, rate, burst); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	state, ok := m.buckets[key]
	if !ok {
		state = &bucketState{tokens: float64(burst), ts: now}
		m.buckets[key] = state
	} else if delta := now.Sub(state.ts); delta > 0 {
		state.tokens = math.Min(float64(burst), state.tokens+delta.Seconds()*rate)
		state.ts = now
	}

	allowed := state.tokens >= 1
	if allowed {
		state.tokens--
	}
	m.evict(now, rate, burst)
	return result(allowed, state.tokens, rate), nil
}

// evict drops buckets that have been full long enough to be indistinguishable from new ones.
func (m *MemoryBucket) evict(now time.Time, rate float64, burst int) {
	if len(m.buckets) < 4096 {
		return
	}
	ttl := bucketTTL(rate, burst)
	for k, st := range m.buckets {
		if now.Sub(st.ts) > ttl {
			delete(m.buckets, k)
		}
	}
}
