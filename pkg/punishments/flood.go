package punishments

import (
	"sync"
	"time"
)

// FloodLimiter tracks connection attempts per address over a sliding
// window. An address that keeps connecting without ever completing a
// handshake is provisionally rejected before any ban table is consulted.
type FloodLimiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewFloodLimiter creates a limiter allowing limit attempts per window.
// A non-positive limit disables flood control.
func NewFloodLimiter(limit int, window time.Duration) *FloodLimiter {
	return NewFloodLimiterWithClock(limit, window, time.Now)
}

// NewFloodLimiterWithClock is NewFloodLimiter with a custom clock.
func NewFloodLimiterWithClock(limit int, window time.Duration, now func() time.Time) *FloodLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FloodLimiter{
		entries: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     now,
	}
}

// Allow records one attempt for ip and reports whether it is under the
// limit.
func (f *FloodLimiter) Allow(ip string) bool {
	if f.limit <= 0 {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	cutoff := now.Add(-f.window)

	timestamps := f.entries[ip]
	recent := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= f.limit {
		f.entries[ip] = recent
		return false
	}
	f.entries[ip] = append(recent, now)
	return true
}

// Clear forgets ip's attempts, called once a connection completes.
func (f *FloodLimiter) Clear(ip string) {
	f.mu.Lock()
	delete(f.entries, ip)
	f.mu.Unlock()
}
