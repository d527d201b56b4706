package upstream

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by a guarded call while its service breaker is open.
var ErrOpen = errors.New("circuit breaker open")

const minSamples = 5

// Breaker tracks failure rates per external service over a sliding window
// and trips when the rate reaches the threshold. After the cooldown it goes
// half-open and lets a single probe through: success closes it, failure
// re-trips it.
type Breaker struct {
	mu        sync.Mutex
	threshold float64
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time
	services  map[string]*serviceState
}

type serviceState struct {
	successes []time.Time
	failures  []time.Time
	tripped   bool
	trippedAt time.Time
	probing   bool
}

// NewBreaker creates a Breaker. threshold is the failure rate (0.0-1.0) at
// which a service trips; cooldown <= 0 defaults to window.
func NewBreaker(threshold float64, window, cooldown time.Duration) *Breaker {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	if window <= 0 {
		window = 2 * time.Minute
	}
	if cooldown <= 0 {
		cooldown = window
	}
	return &Breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
		services:  make(map[string]*serviceState),
	}
}

func (b *Breaker) getOrCreate(service string) *serviceState {
	s, ok := b.services[service]
	if !ok {
		s = &serviceState{}
		b.services[service] = s
	}
	return s
}

// Allow reports whether a call to service may proceed. While tripped it
// returns false until the cooldown elapses, then admits exactly one probe.
func (b *Breaker) Allow(service string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.services[service]
	if !ok || !s.tripped {
		return true
	}
	if s.probing {
		return false
	}
	if b.now().Sub(s.trippedAt) >= b.cooldown {
		s.probing = true
		return true
	}
	return false
}

// RecordSuccess records a successful call. A successful probe closes the
// breaker and clears its history.
func (b *Breaker) RecordSuccess(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.getOrCreate(service)
	if s.probing {
		*s = serviceState{}
		return
	}
	s.successes = append(s.successes, b.now())
	b.pruneUnlocked(s)
}

// RecordFailure records a failed call, tripping the breaker when the
// windowed failure rate reaches the threshold over at least minSamples
// calls. A failed probe re-trips immediately.
func (b *Breaker) RecordFailure(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.getOrCreate(service)
	now := b.now()
	s.failures = append(s.failures, now)

	if s.probing {
		s.probing = false
		s.tripped = true
		s.trippedAt = now
		return
	}

	b.pruneUnlocked(s)
	total := len(s.successes) + len(s.failures)
	if total >= minSamples && !s.tripped {
		if float64(len(s.failures))/float64(total) >= b.threshold {
			s.tripped = true
			s.trippedAt = now
		}
	}
}

// Release ends an in-flight probe without recording an outcome. The
// breaker stays tripped and admits a new probe on the next Allow.
func (b *Breaker) Release(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.services[service]; ok {
		s.probing = false
	}
}

// Trip manually opens the breaker for service.
func (b *Breaker) Trip(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.getOrCreate(service)
	s.tripped = true
	s.probing = false
	s.trippedAt = b.now()
}

// Reset closes the breaker for service and clears its history.
func (b *Breaker) Reset(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.services[service]; ok {
		*s = serviceState{}
	}
}

// Status returns a human-readable state for service.
func (b *Breaker) Status(service string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.services[service]
	if !ok || !s.tripped {
		return "closed"
	}
	if s.probing {
		return fmt.Sprintf("half-open (since %s)", s.trippedAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("open (since %s)", s.trippedAt.Format(time.RFC3339))
}

// Snapshot returns the status of every service seen so far.
func (b *Breaker) Snapshot() map[string]string {
	b.mu.Lock()
	names := make([]string, 0, len(b.services))
	for name := range b.services {
		names = append(names, name)
	}
	b.mu.Unlock()

	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = b.Status(name)
	}
	return out
}

// pruneUnlocked removes entries outside the sliding window. Must be called with mu held.
func (b *Breaker) pruneUnlocked(s *serviceState) {
	cutoff := b.now().Add(-b.window)
	s.successes = pruneOlderThan(s.successes, cutoff)
	s.failures = pruneOlderThan(s.failures, cutoff)
}

func pruneOlderThan(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, t := range times {
		if t.After(cutoff) {
			times[idx] = t
			idx++
		}
	}
	return times[:idx]
}
