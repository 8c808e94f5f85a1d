package ratelimit

import (
	"context"
	"sync"
	"time"

	"chonkprice/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Each call reserves the next free slot under the lock, so concurrent callers
// are spaced Interval apart. A caller whose context ends before its slot
// returns early; its slot is not reused.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	next time.Time // earliest start of the next call
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
	if m.Interval > 0 {
		if wait := m.reserve(time.Now()); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	return m.P.Fetch(ctx, symbols)
}

// reserve claims the first slot at or after now and returns how long to wait for it.
func (m *MinInterval) reserve(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := now
	if m.next.After(now) {
		slot = m.next
	}
	m.next = slot.Add(m.Interval)
	return slot.Sub(now)
}

// Wrap gates p with a token bucket when maxPerMinute > 0, otherwise with a
// minimum interval when minInterval > 0. p is returned unchanged when both are unset.
func Wrap(p provider.Provider, maxPerMinute, burst int, minInterval time.Duration) provider.Provider {
	switch {
	case maxPerMinute > 0:
		if burst <= 0 {
			burst = 1
		}
		return &TokenBucketProvider{P: p, TB: NewTokenBucket(float64(maxPerMinute)/60.0, burst)}
	case minInterval > 0:
		return &MinInterval{P: p, Interval: minInterval}
	}
	return p
}
