package availability

import (
	"time"

	"github.com/md-rashed-zaman/chairtime/internal/clock"
	"github.com/md-rashed-zaman/chairtime/internal/model"
)

const (
	// LookaheadDays bounds the forward scan so a fully non-working week
	// cannot make date listing loop over an unbounded range.
	LookaheadDays = 30
	// DateCandidateCount is how many bookable dates are offered at once.
	DateCandidateCount = 7
)

// DateCandidates walks forward from now's date collecting the first `want`
// dates whose weekday is working and which still have a theoretical opening.
// week is indexed by time.Weekday. now must already be business-local.
func DateCandidates(week [7]model.WorkDay, now time.Time, lookaheadDays, want int) []string {
	if lookaheadDays <= 0 {
		lookaheadDays = LookaheadDays
	}
	if want <= 0 {
		want = DateCandidateCount
	}

	nowMinutes := now.Hour()*60 + now.Minute()

	var dates []string
	for offset := 0; offset < lookaheadDays && len(dates) < want; offset++ {
		day := now.AddDate(0, 0, offset)
		wd := week[int(day.Weekday())]
		isToday := offset == 0
		if !HasOpening(wd, isToday, nowMinutes) {
			continue
		}
		dates = append(dates, day.Format(clock.DateLayout))
	}
	return dates
}
