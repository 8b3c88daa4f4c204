// Package task governs the task lifecycle: the single legal status
// transition (pending to completed) and the fields derived at completion.
package task

import (
	"time"

	"github.com/yanoazi/line-todo-bot/internal/model"
)

// Location is the reference time zone for all calendar math. Due dates are
// midnight in this zone and "on time" means at or before that day's end here.
var Location = time.FixedZone("Asia/Taipei", 8*60*60)

// Completion carries the fields derived when a pending task completes.
type Completion struct {
	CompletedAt time.Time
	OnTime      bool
}

// CompletePending derives the completion fields for t at instant now. The
// second return is false when t is already completed; re-completing is a
// no-op the caller reports as an informational success, never a transition.
func CompletePending(t *model.Task, now time.Time) (Completion, bool) {
	if t.Status == model.StatusCompleted {
		return Completion{}, false
	}
	return Completion{
		CompletedAt: now,
		OnTime:      OnTime(t.DueDate, now),
	}, true
}

// OnTime reports whether completing at completedAt counts as on time for the
// given due date. A task without a due date is conventionally on time.
func OnTime(due *time.Time, completedAt time.Time) bool {
	if due == nil {
		return true
	}
	return !completedAt.After(EndOfDay(*due))
}

// EndOfDay returns the last instant of d's calendar day in Location.
func EndOfDay(d time.Time) time.Time {
	d = d.In(Location)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, Location).
		Add(24*time.Hour - time.Nanosecond)
}

// DueStatus classifies a pending task's due date against "now".
type DueStatus string

const (
	DueNone    DueStatus = "none"     // no due date
	DueOverdue DueStatus = "overdue"  // due day has passed
	DueToday   DueStatus = "today"    // due today
	DueSoon    DueStatus = "soon"     // due tomorrow
	DueLater   DueStatus = "later"    // two or more days out
)

// ClassifyDue returns the due status and the whole days remaining (negative
// when overdue). DaysLeft is calendar-day based, not a 24h-interval count.
func ClassifyDue(due *time.Time, now time.Time) (DueStatus, int) {
	if due == nil {
		return DueNone, 0
	}
	days := DaysLeft(*due, now)
	switch {
	case days < 0:
		return DueOverdue, days
	case days == 0:
		return DueToday, days
	case days == 1:
		return DueSoon, days
	default:
		return DueLater, days
	}
}

// DaysLeft counts calendar days in Location from now's day to due's day.
func DaysLeft(due, now time.Time) int {
	d := startOfDay(due)
	n := startOfDay(now)
	return int(d.Sub(n) / (24 * time.Hour))
}

func startOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}
