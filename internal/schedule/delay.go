package schedule

import (
	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/date"
)

// Assessment is a task's own delay on a given day.
type Assessment struct {
	IsDelayed   bool
	DelayedDays int
}

// Assess computes t's own delay as of today. ok is false when t has no end
// date, in which case nothing can be said about it.
//
// Once a task has slipped, its delay is measured from OriginalEndDate so that
// moving the deadline again does not restart the count.
func Assess(t *task.Task, today date.Date) (a Assessment, ok bool) {
	if t.EndDate == nil {
		return Assessment{}, false
	}
	if t.IsDone() || !t.EndDate.Before(today) {
		return Assessment{}, true
	}
	from := *t.EndDate
	if t.OriginalEndDate != nil {
		from = *t.OriginalEndDate
	}
	return Assessment{IsDelayed: true, DelayedDays: today.DaysSince(from)}, true
}

// Evaluate writes Assess's result into t. Tasks without an end date are left
// as they are.
func Evaluate(t *task.Task, today date.Date) {
	a, ok := Assess(t, today)
	if !ok {
		return
	}
	t.IsDelayed = a.IsDelayed
	t.DelayedDays = a.DelayedDays
}
