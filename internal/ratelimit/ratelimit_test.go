package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiter_Admit(t *testing.T) {
	t.Run("Should reject the 31st call inside one window", func(t *testing.T) {
		clock := newClock()
		l := New(30, time.Minute, 100, WithClock(clock.Now))

		for i := 1; i <= 30; i++ {
			require.True(t, l.Admit("1.2.3.4"), "call %d should be admitted", i)
			clock.Advance(time.Second)
		}
		assert.False(t, l.Admit("1.2.3.4"))
	})

	t.Run("Should open a new window once the period has elapsed", func(t *testing.T) {
		clock := newClock()
		l := New(2, time.Minute, 100, WithClock(clock.Now))

		assert.True(t, l.Admit("a"))
		assert.True(t, l.Admit("a"))
		assert.False(t, l.Admit("a"))

		clock.Advance(59 * time.Second)
		assert.False(t, l.Admit("a"))

		clock.Advance(time.Second)
		assert.True(t, l.Admit("a"))
	})

	t.Run("Should keep separate buckets per caller", func(t *testing.T) {
		clock := newClock()
		l := New(1, time.Minute, 100, WithClock(clock.Now))

		assert.True(t, l.Admit("a"))
		assert.True(t, l.Admit("b"))
		assert.False(t, l.Admit("a"))
		assert.Equal(t, 2, l.Len())
	})

	t.Run("Should share one bucket for unidentified callers", func(t *testing.T) {
		l := New(1, time.Minute, 100)

		assert.True(t, l.Admit(""))
		assert.False(t, l.Admit(AnonymousKey))
	})

	t.Run("Should not lose increments under concurrent calls", func(t *testing.T) {
		l := New(50, time.Hour, 100)
		var admitted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Admit("burst") {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(50), admitted.Load())
	})

	t.Run("Should bound the number of tracked callers", func(t *testing.T) {
		l := New(5, time.Minute, 3)
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			l.Admit(id)
		}
		assert.Equal(t, 3, l.Len())
	})
}

func TestCallerID(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"Should use the first forwarded address", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"Should trim surrounding whitespace", "  198.51.100.2 ", "198.51.100.2"},
		{"Should fall back to anonymous without header", "", AnonymousKey},
		{"Should fall back to anonymous on empty first token", " ,10.0.0.1", AnonymousKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			if tc.header != "" {
				r.Header.Set("X-Forwarded-For", tc.header)
			}
			assert.Equal(t, tc.want, CallerID(r))
		})
	}
}
