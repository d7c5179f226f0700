package reminder

import (
	"testing"
	"time"
)

func TestTimersRegisterOnce(t *testing.T) {
	timers := NewTimers()
	defer timers.StopAll()

	if !timers.RegisterOnce("a", time.Hour, func() {}) {
		t.Fatal("first registration should succeed")
	}
	if timers.RegisterOnce("a", time.Hour, func() {}) {
		t.Fatal("duplicate key must be rejected")
	}
	if timers.Len() != 1 {
		t.Fatalf("Len = %d, want 1", timers.Len())
	}
}

func TestTimersRejectsNonPositiveDelay(t *testing.T) {
	timers := NewTimers()
	if timers.RegisterOnce("past", -time.Second, func() {}) {
		t.Fatal("negative delay must not arm")
	}
	if timers.RegisterOnce("now", 0, func() {}) {
		t.Fatal("zero delay must not arm")
	}
	if timers.Len() != 0 {
		t.Fatalf("Len = %d, want 0", timers.Len())
	}
}

func TestTimersFireReleasesKey(t *testing.T) {
	timers := NewTimers()
	defer timers.StopAll()

	fired := make(chan struct{})
	timers.RegisterOnce("k", 10*time.Millisecond, func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if timers.Has("k") {
		t.Fatal("key should be released after firing")
	}
	if !timers.RegisterOnce("k", time.Hour, func() {}) {
		t.Fatal("released key should be reusable")
	}
}

func TestTimersCancel(t *testing.T) {
	timers := NewTimers()
	defer timers.StopAll()

	fired := make(chan struct{})
	timers.RegisterOnce("c", 20*time.Millisecond, func() {
		close(fired)
	})
	if !timers.Cancel("c") {
		t.Fatal("Cancel should report an existing timer")
	}
	if timers.Cancel("c") {
		t.Fatal("second Cancel should report nothing to do")
	}

	select {
	case <-fired:
		t.Fatal("cancelled timer must not fire")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTimersStopAll(t *testing.T) {
	timers := NewTimers()
	for _, k := range []string{"x", "y", "z"} {
		timers.RegisterOnce(k, time.Hour, func() {})
	}
	timers.StopAll()
	if timers.Len() != 0 {
		t.Fatalf("Len after StopAll = %d, want 0", timers.Len())
	}
}
