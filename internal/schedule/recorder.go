package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/cerr"
	"github.com/kazz187/wbsguild/pkg/clock"
	"github.com/kazz187/wbsguild/pkg/date"
)

// ErrInvalidDelay is wrapped by the InvalidArgument error RecordDelay returns
// when the new end date would not push the deadline later.
var ErrInvalidDelay = errors.New("invalid delay")

// Recorder moves a task's deadline and keeps its delay history.
type Recorder struct {
	tasks task.Repository
	clock clock.Clock
}

func NewRecorder(tasks task.Repository, clk clock.Clock) *Recorder {
	return &Recorder{tasks: tasks, clock: clk}
}

// RecordDelay moves the end date of taskID to newEnd and returns the stored
// task.
//
// The first recorded delay freezes the previous end date as OriginalEndDate.
// DelayedDays accumulates the length of every slip. IsDelayed reflects the
// new dates. On error nothing is written.
func (r *Recorder) RecordDelay(ctx context.Context, taskID string, newEnd date.Date, reason string) (*task.Task, error) {
	t, err := r.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.EndDate == nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "task has no end date to delay", ErrInvalidDelay)
	}
	oldEnd := *t.EndDate
	if newEnd.Before(oldEnd) {
		return nil, cerr.NewError(cerr.InvalidArgument, "new end date precedes current end date", ErrInvalidDelay).
			AddDetailMessage(fmt.Sprintf("current end date is %s", oldEnd))
	}

	today := clock.Today(r.clock)
	if t.OriginalEndDate == nil {
		t.OriginalEndDate = date.Ptr(oldEnd)
	}
	t.EndDate = date.Ptr(newEnd)
	t.DelayedDays += newEnd.DaysSince(oldEnd)
	t.DelayCount++
	t.DelayReason = reason
	t.LastDelayDate = date.Ptr(today)
	t.UpdatedAt = r.clock.Now()
	// Only the flag is refreshed here. DelayedDays keeps the recorded
	// history until the next read re-evaluates it.
	a, _ := Assess(t, today)
	t.IsDelayed = a.IsDelayed

	if err := r.tasks.Update(ctx, t); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "task delay recorded",
		"task_id", t.ID,
		"old_end", oldEnd.String(),
		"new_end", newEnd.String(),
		"delay_count", t.DelayCount,
		"delayed_days", t.DelayedDays,
	)
	return t, nil
}
