package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// sweepInterval is how often the limiter drops keys that went quiet.
const sweepInterval = 5 * time.Minute

// Limiter is a sliding-window rate limiter keyed by client address. Each key
// keeps the timestamps of its admitted requests inside the window; expired
// entries are purged lazily on the next Allow for that key and periodically
// for keys that stopped sending.
type Limiter struct {
	max    int
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	history map[string][]time.Time

	now func() time.Time
}

// NewLimiter creates a limiter admitting at most max requests per key within
// the given window.
func NewLimiter(log *slog.Logger, max int, window time.Duration) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{
		max:     max,
		window:  window,
		logger:  log.With(slog.String("service", "ratelimit")),
		history: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether a request from key is admitted now. An admitted
// request is recorded; a rejected one is not, so a client that keeps sending
// while throttled does not push its own window forward.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.history[key][:0]
	for _, t := range l.history[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.max {
		l.history[key] = kept
		return false
	}
	l.history[key] = append(kept, now)
	return true
}

// Start runs the background sweep until the context is cancelled. Without it
// the limiter still works, but keys that go quiet would linger until their
// next request.
func (l *Limiter) Start(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.sweep()
			if removed > 0 {
				l.logger.Debug("swept idle clients", slog.Int("removed", removed))
			}
		}
	}
}

func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, times := range l.history {
		idle := true
		for _, t := range times {
			if t.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(l.history, key)
			removed++
		}
	}
	return removed
}
