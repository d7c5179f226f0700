package clock

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("invalid date format")
	ErrInvalidTime = errors.New("invalid time format")
)

// Clock is the injectable time source. Production code uses SystemClock;
// tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Business anchors all date and slot arithmetic to the shop's fixed-offset
// zone. The offset is configuration, never the host locale.
type Business struct {
	clock Clock
	loc   *time.Location
}

func NewBusiness(clock Clock, utcOffsetHours int) *Business {
	name := fmt.Sprintf("UTC%+d", utcOffsetHours)
	return &Business{
		clock: clock,
		loc:   time.FixedZone(name, utcOffsetHours*3600),
	}
}

func (b *Business) Location() *time.Location {
	return b.loc
}

// Now returns the current instant in business-local time.
func (b *Business) Now() time.Time {
	return b.clock.Now().In(b.loc)
}

func (b *Business) NowUTC() time.Time {
	return b.clock.Now().UTC()
}

// Today returns the current business-local civil date.
func (b *Business) Today() string {
	return b.Now().Format(DateLayout)
}

// NowClock returns the current business-local time of day as "15:04".
func (b *Business) NowClock() string {
	return b.Now().Format(ClockLayout)
}

// NowClockMinutes returns the current business-local time of day in minutes
// from midnight.
func (b *Business) NowClockMinutes() int {
	now := b.Now()
	return now.Hour()*60 + now.Minute()
}

func (b *Business) IsToday(date string) bool {
	return date == b.Today()
}

// SlotInstant converts a business-local (date, time-of-day) pair to the UTC
// instant the appointment starts at.
func (b *Business) SlotInstant(date, slot string) (time.Time, error) {
	if _, err := time.Parse(ClockLayout, slot); err != nil {
		return time.Time{}, ErrInvalidTime
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+slot, b.loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t.UTC(), nil
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseClockMinutes converts "15:04" to minutes from midnight.
func ParseClockMinutes(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClockMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
