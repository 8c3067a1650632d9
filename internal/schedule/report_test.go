package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/wbsguild/internal/task"
)

// seedReport stores four tasks in p1 and one in p2:
//
//	A  todo         ended 10 days ago  -> 10 days, critical
//	B  in-progress  ended 3 days ago   -> 3 days
//	C  done         no end date, 4 recorded delay days
//	D  todo         ends in 2 days
//	E  todo (p2)    ended 1 day ago
func seedReport(t *testing.T, f *fixture) {
	t.Helper()
	f.addTask(t, &task.Task{ID: "A", EndDate: f.daysAgo(10)})
	f.addTask(t, &task.Task{ID: "B", Status: task.StatusInProgress, EndDate: f.daysAgo(3)})
	f.addTask(t, &task.Task{ID: "C", Status: task.StatusDone, DelayedDays: 4})
	f.addTask(t, &task.Task{ID: "D", EndDate: f.daysAgo(-2)})
	f.addTask(t, &task.Task{ID: "E", ProjectID: "p2", EndDate: f.daysAgo(1)})
}

func TestDelayedTasks(t *testing.T) {
	f := newFixture(t, "2024-06-15")
	seedReport(t, f)

	got, err := f.reporter.DelayedTasks(f.ctx, "p1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, taskIDs(got))
	assert.Equal(t, 10, got[0].DelayedDays)

	got, err = f.reporter.DelayedTasks(f.ctx, "p1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, taskIDs(got))

	got, err = f.reporter.DelayedTasks(f.ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "E"}, taskIDs(got))

	got, err = f.reporter.DelayedTasks(f.ctx, "nobody", false)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestProjectDelayStats(t *testing.T) {
	f := newFixture(t, "2024-06-15")
	seedReport(t, f)

	stats, err := f.reporter.ProjectDelayStats(f.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, DelayStats{
		TotalTasks:           4,
		DelayedTasks:         2,
		DelayRate:            50,
		TotalDelayedDays:     17,
		CriticalDelayedTasks: 1,
	}, stats)

	empty, err := f.reporter.ProjectDelayStats(f.ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, DelayStats{}, empty)
}

func TestStatusCounts(t *testing.T) {
	f := newFixture(t, "2024-06-15")
	seedReport(t, f)

	counts, err := f.reporter.StatusCounts(f.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[task.Status]int{
		task.StatusTodo:       2,
		task.StatusInProgress: 1,
		task.StatusDone:       1,
	}, counts)
}
