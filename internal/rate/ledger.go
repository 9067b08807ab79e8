// Package rate implements the rolling attempt counters that keep
// publish traffic under the external service's hourly and daily action
// ceilings. Reservations are atomic check-and-increment operations so
// concurrent publish workers cannot jointly overshoot a ceiling.
package rate

import (
	"context"
	"time"
)

// Limits are the action ceilings per publishing account
type Limits struct {
	PerHour int
	PerDay  int
}

// Counts is a snapshot of the current bucket counters
type Counts struct {
	Hour int64
	Day  int64
}

// Ledger reserves publish attempts against the rolling counters
type Ledger interface {
	// Reserve atomically consumes one attempt from the hour and day
	// buckets. It returns false without consuming anything when either
	// ceiling is already reached; the caller defers the attempt.
	Reserve(ctx context.Context, account string, now time.Time) (bool, error)
	// Counts reports the current bucket counters for an account.
	Counts(ctx context.Context, account string, now time.Time) (Counts, error)
}

func hourBucket(now time.Time) string {
	return now.UTC().Format("2006010215")
}

func dayBucket(now time.Time) string {
	return now.UTC().Format("20060102")
}
