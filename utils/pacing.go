package utils

import (
	"sync"
	"time"
)

// Pacer enforces a minimum interval between successive actions. It is the
// politeness-delay primitive: pure timing, no condition checking. Readiness
// waits are a separate concern (see WaitFor).
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewPacer creates a Pacer with the given minimum interval between actions.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until at least the configured interval has passed since the
// previous call. The first call returns immediately.
func (p *Pacer) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if elapsed := time.Since(p.last); elapsed < p.interval {
			time.Sleep(p.interval - elapsed)
		}
	}
	p.last = time.Now()
}

// SeenSet is a thread-safe set for tracking identifiers already processed,
// e.g. SKUs collected across result pages.
type SeenSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewSeenSet creates an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *SeenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been seen.
func (s *SeenSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *SeenSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
