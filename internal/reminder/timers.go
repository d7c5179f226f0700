package reminder

import (
	"sync"
	"time"
)

// Timers is a one-shot timer registry keyed by deterministic names. A key can
// hold at most one live timer, which is how duplicate registration attempts
// for the same reminder are detected and rejected. The registry is agnostic
// to what fires: callbacks receive no arguments and close over their payload.
type Timers struct {
	mu sync.Mutex
	m  map[string]*time.Timer
}

func NewTimers() *Timers {
	return &Timers{m: map[string]*time.Timer{}}
}

// RegisterOnce arms fn to run once after delay. The caller computes delay
// against its own clock so the registry never consults the wall clock. It
// reports false without arming anything when the key is already registered
// or the delay is not positive. The key is released right before fn runs.
func (t *Timers) RegisterOnce(key string, delay time.Duration, fn func()) bool {
	if delay <= 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.m[key]; exists {
		return false
	}
	t.m[key] = time.AfterFunc(delay, func() {
		t.release(key)
		fn()
	})
	return true
}

// Cancel stops and forgets the timer for key, reporting whether one existed.
// A timer whose callback has already started cannot be cancelled.
func (t *Timers) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.m[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.m, key)
	return true
}

func (t *Timers) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.m[key]
	return ok
}

func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// StopAll stops every registered timer. Used on shutdown.
func (t *Timers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.m {
		timer.Stop()
		delete(t.m, key)
	}
}

func (t *Timers) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, key)
}
