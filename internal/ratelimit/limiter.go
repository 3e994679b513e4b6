// Package ratelimit enforces a per-caller daily interaction quota backed by
// a durable counter, so limits survive restarts.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// CounterStore is the persistence the limiter needs. *storage.Store
// implements it.
type CounterStore interface {
	// IncrementUsage atomically admits and counts one interaction unless the
	// day's count already reached limit. Returns the resulting count and
	// whether the interaction was admitted.
	IncrementUsage(ctx context.Context, identifier, day string, limit int) (int, bool, error)

	// Usage returns the day's count without incrementing.
	Usage(ctx context.Context, identifier, day string) (int, error)
}

// Result describes the quota state after a check.
type Result struct {
	Allowed   bool
	Limit     int
	UsedToday int
	Remaining int
	Unlimited bool
}

// Limiter applies a daily quota per caller identifier. Days roll over at
// UTC midnight.
type Limiter struct {
	store    CounterStore
	limit    int
	enabled  bool
	failOpen bool

	now func() time.Time
}

// New creates a Limiter. When enabled is false every check passes without
// touching the store. failOpen decides what happens when the store errors:
// true admits the request with a warning, false denies it.
func New(store CounterStore, limit int, enabled, failOpen bool) *Limiter {
	return &Limiter{
		store:    store,
		limit:    limit,
		enabled:  enabled,
		failOpen: failOpen,
		now:      time.Now,
	}
}

func (l *Limiter) day() string {
	return l.now().UTC().Format("2006-01-02")
}

// Allow checks and consumes one interaction for the identifier. The check
// and the increment are a single atomic operation in the store, so two
// concurrent requests can never both take the last slot.
func (l *Limiter) Allow(ctx context.Context, identifier string) Result {
	if !l.enabled {
		return Result{Allowed: true, Unlimited: true}
	}

	count, allowed, err := l.store.IncrementUsage(ctx, identifier, l.day(), l.limit)
	if err != nil {
		if l.failOpen {
			slog.Warn("rate limit store unavailable, failing open", "error", err)
			return Result{Allowed: true, Limit: l.limit, Remaining: l.limit}
		}
		slog.Error("rate limit store unavailable, failing closed", "error", err)
		return Result{Allowed: false, Limit: l.limit}
	}

	return l.result(count, allowed)
}

// Status reports the identifier's quota state without consuming anything.
func (l *Limiter) Status(ctx context.Context, identifier string) (Result, error) {
	if !l.enabled {
		return Result{Allowed: true, Unlimited: true}, nil
	}

	count, err := l.store.Usage(ctx, identifier, l.day())
	if err != nil {
		return Result{}, err
	}
	return l.result(count, count < l.limit), nil
}

func (l *Limiter) result(count int, allowed bool) Result {
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   allowed,
		Limit:     l.limit,
		UsedToday: count,
		Remaining: remaining,
	}
}
