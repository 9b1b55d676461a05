package insights

import (
	"time"

	"dreamdecode/pkg/domain"
)

// Streak is the user's consecutive-day recording state.
type Streak struct {
	Current  int
	Longest  int
	LastDate time.Time
}

// AdvanceStreak applies a dream recorded at `at` to u's streak. Dates are UTC
// calendar days: recording the day after the last dream extends the streak,
// recording again on the same day keeps it, anything else restarts at 1.
func AdvanceStreak(u domain.User, at time.Time) Streak {
	today := utcDay(at)
	current := u.StreakCurrent
	switch {
	case u.LastDreamDate == nil:
		current = 1
	case utcDay(*u.LastDreamDate).Equal(today.AddDate(0, 0, -1)):
		current++
	case !utcDay(*u.LastDreamDate).Equal(today):
		current = 1
	}
	if current < 1 {
		current = 1
	}
	return Streak{Current: current, Longest: max(u.StreakLongest, current), LastDate: today}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
