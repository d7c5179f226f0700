package availability

import (
	"github.com/md-rashed-zaman/chairtime/internal/clock"
	"github.com/md-rashed-zaman/chairtime/internal/model"
)

// SlotMinutes is the booking grid granularity.
const SlotMinutes = 30

// Slots returns the ordered bookable time-of-day strings for one date.
//
// Candidates are the SlotMinutes-aligned ticks in [open, close), minus slots
// already present in booked. When the date is today, slots at or before
// nowMinutes are dropped as well; once nowMinutes reaches close minus one
// slot, nothing remains. An empty result means "nothing bookable", not an
// error.
func Slots(day model.WorkDay, booked map[string]struct{}, isToday bool, nowMinutes int) ([]string, error) {
	if !day.Working {
		return nil, nil
	}
	openMin, err := clock.ParseClockMinutes(day.Open)
	if err != nil {
		return nil, err
	}
	closeMin, err := clock.ParseClockMinutes(day.Close)
	if err != nil {
		return nil, err
	}
	if closeMin <= openMin {
		return nil, nil
	}

	var slots []string
	for cursor := openMin; cursor < closeMin; cursor += SlotMinutes {
		if isToday && cursor <= nowMinutes {
			continue
		}
		slot := clock.FormatClockMinutes(cursor)
		if _, taken := booked[slot]; taken {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// FormatLastSlot returns the latest bookable time-of-day for a closing time,
// which is one slot before close. Malformed input is echoed back unchanged.
func FormatLastSlot(close string) string {
	closeMin, err := clock.ParseClockMinutes(close)
	if err != nil || closeMin < SlotMinutes {
		return close
	}
	return clock.FormatClockMinutes(closeMin - SlotMinutes)
}

// HasOpening reports whether the date could still accept any booking at all,
// ignoring existing reservations. For today that means the clock has not yet
// reached the last slot of the day (close minus one slot).
func HasOpening(day model.WorkDay, isToday bool, nowMinutes int) bool {
	if !day.Working {
		return false
	}
	openMin, err := clock.ParseClockMinutes(day.Open)
	if err != nil {
		return false
	}
	closeMin, err := clock.ParseClockMinutes(day.Close)
	if err != nil {
		return false
	}
	if closeMin <= openMin {
		return false
	}
	if isToday && nowMinutes >= closeMin-SlotMinutes {
		return false
	}
	return true
}
