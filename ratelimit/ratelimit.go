// Package ratelimit implements the client-side sliding-window limiters that
// gate API calls and payment attempts.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultAPIMax     = 10
	DefaultPaymentMax = 3
	DefaultWindow     = time.Minute
)

// Limiter admits at most max requests in any trailing window.
type Limiter struct {
	max      int
	window   time.Duration
	mu       sync.Mutex
	requests []time.Time
	now      func() time.Time
}

type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records and admits a request when the window has room.
// Rejected requests are not recorded.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.requests) >= l.max {
		return false
	}
	l.requests = append(l.requests, now)
	return true
}

// TimeUntilReset is how long until the oldest recorded request leaves the
// window, or zero when nothing is recorded.
func (l *Limiter) TimeUntilReset() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.requests) == 0 {
		return 0
	}
	wait := l.window - now.Sub(l.requests[0])
	if wait < 0 {
		return 0
	}
	return wait
}

func (l *Limiter) prune(now time.Time) {
	kept := l.requests[:0]
	for _, t := range l.requests {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.requests = kept
}

// Pair is the limiter set owned by one client: a browser session or a CLI
// process.
type Pair struct {
	API     *Limiter
	Payment *Limiter
}

// Limits configures a Pair.
type Limits struct {
	APIMax        int
	APIWindow     time.Duration
	PaymentMax    int
	PaymentWindow time.Duration
}

// DefaultLimits is 10 API calls and 3 payment attempts per minute.
func DefaultLimits() Limits {
	return Limits{
		APIMax:        DefaultAPIMax,
		APIWindow:     DefaultWindow,
		PaymentMax:    DefaultPaymentMax,
		PaymentWindow: DefaultWindow,
	}
}

func NewPair(limits Limits, opts ...Option) *Pair {
	return &Pair{
		API:     New(limits.APIMax, limits.APIWindow, opts...),
		Payment: New(limits.PaymentMax, limits.PaymentWindow, opts...),
	}
}
