package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

type Scope string

const (
	ScopeCaller Scope = "caller"
	ScopeGlobal Scope = "global"
)

// LimitError is the rejected-request result. It is a normal outcome,
// not a failure: callers branch on it with errors.As to pick user
// messaging.
type LimitError struct {
	Scope      Scope
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited (%s), retry in %s", e.Scope, e.RetryAfter.Round(100*time.Millisecond))
}

// Limiter throttles the online-signal path: one call per caller per
// cooldown window, and a rolling global cap across all callers.
// Requests over either limit are rejected immediately, never queued.
type Limiter struct {
	callerCooldown time.Duration
	globalLimit    int
	globalWindow   time.Duration
	now            func() time.Time

	mu       sync.Mutex
	lastCall map[int64]time.Time
	global   []time.Time
}

func New(callerCooldown, globalWindow time.Duration, globalLimit int) *Limiter {
	return NewWithClock(callerCooldown, globalWindow, globalLimit, time.Now)
}

// NewWithClock injects the clock; tests drive it manually.
func NewWithClock(callerCooldown, globalWindow time.Duration, globalLimit int, now func() time.Time) *Limiter {
	return &Limiter{
		callerCooldown: callerCooldown,
		globalLimit:    globalLimit,
		globalWindow:   globalWindow,
		now:            now,
		lastCall:       make(map[int64]time.Time),
	}
}

// Allow records one online-signal call for the caller, or returns a
// *LimitError. A rejected call consumes neither budget.
func (l *Limiter) Allow(callerID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if last, ok := l.lastCall[callerID]; ok {
		if elapsed := now.Sub(last); elapsed < l.callerCooldown {
			return &LimitError{Scope: ScopeCaller, RetryAfter: l.callerCooldown - elapsed}
		}
	}

	if len(l.global) >= l.globalLimit {
		return &LimitError{Scope: ScopeGlobal, RetryAfter: l.global[0].Add(l.globalWindow).Sub(now)}
	}

	l.lastCall[callerID] = now
	l.global = append(l.global, now)
	return nil
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.globalWindow)
	keep := l.global[:0]
	for _, t := range l.global {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.global = keep

	for id, t := range l.lastCall {
		if now.Sub(t) >= l.callerCooldown {
			delete(l.lastCall, id)
		}
	}
}
