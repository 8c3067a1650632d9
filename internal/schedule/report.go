package schedule

import (
	"context"

	"github.com/kazz187/wbsguild/internal/task"
)

// CriticalDelayDays is the delay from which a task counts as critical.
const CriticalDelayDays = 7

type DelayStats struct {
	TotalTasks           int     `json:"totalTasks"`
	DelayedTasks         int     `json:"delayedTasks"`
	DelayRate            float64 `json:"delayRate"` // percent
	TotalDelayedDays     int     `json:"totalDelayedDays"`
	CriticalDelayedTasks int     `json:"criticalDelayedTasks"`
}

// Reporter answers read-only questions about delays.
type Reporter struct {
	tasks  task.Repository
	engine *Engine
}

func NewReporter(tasks task.Repository, engine *Engine) *Reporter {
	return &Reporter{tasks: tasks, engine: engine}
}

// DelayedTasks returns the rolled-up tasks of projectID, or of every project
// when projectID is empty, that are late or carry delay days. Done tasks are
// dropped unless includeCompleted is set.
func (r *Reporter) DelayedTasks(ctx context.Context, projectID string, includeCompleted bool) ([]*task.Task, error) {
	tasks, err := r.tasks.List(ctx, task.Filter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	if err := r.engine.Rollup(ctx, tasks); err != nil {
		return nil, err
	}
	delayed := make([]*task.Task, 0)
	for _, t := range tasks {
		if !t.IsDelayed && t.DelayedDays <= 0 {
			continue
		}
		if t.IsDone() && !includeCompleted {
			continue
		}
		delayed = append(delayed, t)
	}
	return delayed, nil
}

// ProjectDelayStats counts every task of the project, leaf or not.
func (r *Reporter) ProjectDelayStats(ctx context.Context, projectID string) (DelayStats, error) {
	tasks, err := r.tasks.List(ctx, task.Filter{ProjectID: projectID})
	if err != nil {
		return DelayStats{}, err
	}
	if err := r.engine.Rollup(ctx, tasks); err != nil {
		return DelayStats{}, err
	}
	stats := DelayStats{TotalTasks: len(tasks)}
	for _, t := range tasks {
		if t.IsDelayed {
			stats.DelayedTasks++
		}
		stats.TotalDelayedDays += t.DelayedDays
		if t.DelayedDays >= CriticalDelayDays {
			stats.CriticalDelayedTasks++
		}
	}
	if stats.TotalTasks > 0 {
		stats.DelayRate = float64(stats.DelayedTasks) / float64(stats.TotalTasks) * 100
	}
	return stats, nil
}

// StatusCounts returns how many of the project's tasks are in each status.
func (r *Reporter) StatusCounts(ctx context.Context, projectID string) (map[task.Status]int, error) {
	tasks, err := r.tasks.List(ctx, task.Filter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	counts := map[task.Status]int{
		task.StatusTodo:       0,
		task.StatusInProgress: 0,
		task.StatusDone:       0,
	}
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts, nil
}
