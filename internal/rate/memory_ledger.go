package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger keeps the rate buckets in process memory. Used for
// single-process deployments without Redis.
type MemoryLedger struct {
	mu      sync.Mutex
	limits  Limits
	buckets map[string]int64
}

// NewMemoryLedger creates an in-memory ledger
func NewMemoryLedger(limits Limits) *MemoryLedger {
	return &MemoryLedger{
		limits:  limits,
		buckets: make(map[string]int64),
	}
}

func memHourKey(account string, now time.Time) string {
	return account + ":h:" + hourBucket(now)
}

func memDayKey(account string, now time.Time) string {
	return account + ":d:" + dayBucket(now)
}

// Reserve consumes one attempt if both ceilings allow it
func (l *MemoryLedger) Reserve(ctx context.Context, account string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hourKey := memHourKey(account, now)
	dayKey := memDayKey(account, now)

	if l.buckets[hourKey] >= int64(l.limits.PerHour) || l.buckets[dayKey] >= int64(l.limits.PerDay) {
		return false, nil
	}

	l.buckets[hourKey]++
	l.buckets[dayKey]++

	// Old buckets are never read again; drop them once the map grows.
	if len(l.buckets) > 128 {
		l.compact(now)
	}

	return true, nil
}

// Counts reports the current bucket counters
func (l *MemoryLedger) Counts(ctx context.Context, account string, now time.Time) (Counts, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Counts{
		Hour: l.buckets[memHourKey(account, now)],
		Day:  l.buckets[memDayKey(account, now)],
	}, nil
}

func (l *MemoryLedger) compact(now time.Time) {
	hour := hourBucket(now)
	day := dayBucket(now)
	for key := range l.buckets {
		if !memKeyCurrent(key, hour, day) {
			delete(l.buckets, key)
		}
	}
}

func memKeyCurrent(key, hour, day string) bool {
	n := len(key)
	return (n >= len(hour) && key[n-len(hour):] == hour) ||
		(n >= len(day) && key[n-len(day):] == day)
}
