package ws

import (
	"sync"
	"time"
)

// TypingPair is one active typing indicator.
type TypingPair struct {
	From string
	To   string
}

// TypingTracker remembers who is typing to whom. Indicators that are not
// refreshed within ttl are reported by Expire.
type TypingTracker struct {
	mu     sync.Mutex
	ttl    time.Duration
	active map[TypingPair]time.Time
	now    func() time.Time
}

func NewTypingTracker(ttl time.Duration) *TypingTracker {
	return &TypingTracker{
		ttl:    ttl,
		active: make(map[TypingPair]time.Time),
		now:    time.Now,
	}
}

// Start records or refreshes the indicator from -> to.
func (t *TypingTracker) Start(from, to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[TypingPair{From: from, To: to}] = t.now().Add(t.ttl)
}

// Stop clears the indicator and reports whether it was active.
func (t *TypingTracker) Stop(from, to string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := TypingPair{From: from, To: to}
	_, ok := t.active[p]
	delete(t.active, p)
	return ok
}

// Expire removes and returns every indicator past its deadline.
func (t *TypingTracker) Expire() []TypingPair {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []TypingPair
	for p, deadline := range t.active {
		if !now.Before(deadline) {
			out = append(out, p)
			delete(t.active, p)
		}
	}
	return out
}

// ClearFrom removes every indicator started by from and returns the
// recipients that were affected.
func (t *TypingTracker) ClearFrom(from string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var to []string
	for p := range t.active {
		if p.From == from {
			to = append(to, p.To)
			delete(t.active, p)
		}
	}
	return to
}

// Len returns the number of active indicators.
func (t *TypingTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
