// Package ratelimit provides per-caller fixed-window admission control for chat requests.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// AnonymousKey is the bucket shared by every caller without a forwarded address.
const AnonymousKey = "anonymous"

const (
	DefaultMax       = 30
	DefaultWindow    = time.Minute
	DefaultCacheSize = 10000
)

type window struct {
	start time.Time
	count int
}

// Limiter admits at most max calls per caller per window. Windows live in a
// size-bounded cache whose entries expire one window after they opened, so idle
// callers do not accumulate.
type Limiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
	max     int
	period  time.Duration
	now     func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now for window accounting.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(max int, period time.Duration, cacheSize int, opts ...Option) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if period <= 0 {
		period = DefaultWindow
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	l := &Limiter{
		windows: expirable.NewLRU[string, *window](cacheSize, nil, period),
		max:     max,
		period:  period,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit counts one call for callerID and reports whether it is within the cap.
// Rejected calls still count toward the current window.
func (l *Limiter) Admit(callerID string) bool {
	if callerID == "" {
		callerID = AnonymousKey
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows.Get(callerID)
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows.Add(callerID, w)
	}
	w.count++
	return w.count <= l.max
}

// Len reports how many caller windows are currently tracked.
func (l *Limiter) Len() int {
	return l.windows.Len()
}

// CallerID derives the rate-limit key from the first X-Forwarded-For entry.
func CallerID(r *http.Request) string {
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return AnonymousKey
	}
	first, _, _ := strings.Cut(fwd, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return AnonymousKey
}
