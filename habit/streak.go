// Package habit computes habit streaks and manages the discipline board.
//
// Streak math works on calendar dates only. today is interpreted in its own
// location and then compared as a UTC date with the stored yyyy-mm-dd value,
// so 23:00 one day and 01:00 the next are one day apart.
package habit

import (
	"slices"
	"time"

	"github.com/benjamonnguyen/focusforge-go"
)

// ToggleCompletion marks h complete for today, or undoes today's completion
// if it is already marked.
func ToggleCompletion(h focusforge.Habit, today time.Time) focusforge.Habit {
	todayStr := focusforge.DateString(today)
	if h.LastCompletedDate != nil && *h.LastCompletedDate == todayStr {
		h.Streak = max(0, h.Streak-1)
		h.LastCompletedDate = nil
		return h
	}

	streak := 1
	if last, ok := lastCompleted(h); ok && daysBetween(last, calendarDate(today)) == 1 {
		streak = h.Streak + 1
	}
	h.Streak = streak
	h.LastCompletedDate = &todayStr
	return h
}

func ResetStreak(h focusforge.Habit) focusforge.Habit {
	h.Streak = 0
	h.LastCompletedDate = nil
	return h
}

// IsDue reports whether today is one of the habit's target days. A habit
// without target days is due every day.
func IsDue(h focusforge.Habit, today time.Time) bool {
	if len(h.TargetDays) == 0 {
		return true
	}
	return slices.Contains(h.TargetDays, int(today.Weekday()))
}

func CompletedOn(h focusforge.Habit, today time.Time) bool {
	return h.LastCompletedDate != nil && *h.LastCompletedDate == focusforge.DateString(today)
}

// lastCompleted parses LastCompletedDate. Missing and malformed dates are
// both reported as absent.
func lastCompleted(h focusforge.Habit) (time.Time, bool) {
	if h.LastCompletedDate == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(focusforge.DateLayout, *h.LastCompletedDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
