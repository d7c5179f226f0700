package clock

import (
	"testing"
	"time"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

func TestBusinessLocalTime(t *testing.T) {
	// 18:30 UTC is 21:30 at UTC+3.
	now := time.Date(2026, 6, 10, 18, 30, 0, 0, time.UTC)
	biz := NewBusiness(fixedClock{now}, 3)

	if got := biz.Today(); got != "2026-06-10" {
		t.Fatalf("Today = %q, want 2026-06-10", got)
	}
	if got := biz.NowClock(); got != "21:30" {
		t.Fatalf("NowClock = %q, want 21:30", got)
	}
	if got := biz.NowClockMinutes(); got != 21*60+30 {
		t.Fatalf("NowClockMinutes = %d, want %d", got, 21*60+30)
	}
}

func TestBusinessLocalDateRollsOver(t *testing.T) {
	// 22:30 UTC on the 10th is 01:30 on the 11th at UTC+3.
	now := time.Date(2026, 6, 10, 22, 30, 0, 0, time.UTC)
	biz := NewBusiness(fixedClock{now}, 3)

	if got := biz.Today(); got != "2026-06-11" {
		t.Fatalf("Today = %q, want 2026-06-11", got)
	}
}

func TestSlotInstant(t *testing.T) {
	biz := NewBusiness(SystemClock{}, 3)

	got, err := biz.SlotInstant("2026-06-10", "14:30")
	if err != nil {
		t.Fatalf("SlotInstant failed: %v", err)
	}
	want := time.Date(2026, 6, 10, 11, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("SlotInstant = %s, want %s", got, want)
	}

	if _, err := biz.SlotInstant("2026-06-10", "25:00"); err == nil {
		t.Fatal("expected invalid time error")
	}
	if _, err := biz.SlotInstant("10.06.2026", "14:30"); err == nil {
		t.Fatal("expected invalid date error")
	}
}

func TestClockMinutesRoundTrip(t *testing.T) {
	cases := []struct {
		clock   string
		minutes int
	}{
		{"00:00", 0},
		{"10:00", 600},
		{"19:30", 1170},
		{"23:59", 1439},
	}
	for _, tc := range cases {
		m, err := ParseClockMinutes(tc.clock)
		if err != nil {
			t.Fatalf("ParseClockMinutes(%q) failed: %v", tc.clock, err)
		}
		if m != tc.minutes {
			t.Fatalf("ParseClockMinutes(%q) = %d, want %d", tc.clock, m, tc.minutes)
		}
		if s := FormatClockMinutes(tc.minutes); s != tc.clock {
			t.Fatalf("FormatClockMinutes(%d) = %q, want %q", tc.minutes, s, tc.clock)
		}
	}

	if _, err := ParseClockMinutes("24:00"); err == nil {
		t.Fatal("expected error for 24:00")
	}
}
