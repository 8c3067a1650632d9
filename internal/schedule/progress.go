package schedule

import (
	"context"
	"log/slog"

	"github.com/kazz187/wbsguild/internal/project"
	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/clock"
)

// Aggregator derives project progress, status and delay from the project's
// leaf tasks.
type Aggregator struct {
	tasks    task.Repository
	projects project.Repository
	walker   *Walker
	engine   *Engine
	clock    clock.Clock
}

func NewAggregator(tasks task.Repository, projects project.Repository, walker *Walker, engine *Engine, clk clock.Clock) *Aggregator {
	return &Aggregator{
		tasks:    tasks,
		projects: projects,
		walker:   walker,
		engine:   engine,
		clock:    clk,
	}
}

// Completion is the progress and status derived from a set of tasks.
type Completion struct {
	Progress int
	Status   project.Status
	// Derived is false when there were no tasks; Status is then meaningless.
	Derived bool
}

// Percent returns round(100 * done / total), halves rounding up. total must
// be positive.
func Percent(done, total int) int {
	return (200*done + total) / (2 * total)
}

// Complete computes the completion of a project's task list.
//
// Leaves are the denominator. If no task is a leaf, which a well-formed tree
// never produces, every task is counted instead.
func (a *Aggregator) Complete(ctx context.Context, tasks []*task.Task) (Completion, error) {
	if len(tasks) == 0 {
		return Completion{}, nil
	}
	leaves, err := a.walker.leaves(ctx, tasks)
	if err != nil {
		return Completion{}, err
	}
	var total, done int
	for _, t := range tasks {
		if !leaves[t.ID] {
			continue
		}
		total++
		if t.IsDone() {
			done++
		}
	}
	if total == 0 {
		total = len(tasks)
		for _, t := range tasks {
			if t.IsDone() {
				done++
			}
		}
	}

	c := Completion{Progress: Percent(done, total), Derived: true}
	switch {
	case done == 0:
		c.Status = project.StatusPlanning
	case done == total:
		c.Status = project.StatusCompleted
	default:
		c.Status = project.StatusActive
	}
	return c, nil
}

// RecomputeProject stores the progress and status derived from the
// project's tasks and returns the project as re-read from the store.
// Without tasks the progress is reset to 0 and the status is kept.
func (a *Aggregator) RecomputeProject(ctx context.Context, projectID string) (*project.Project, error) {
	p, err := a.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := a.tasks.List(ctx, task.Filter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	c, err := a.Complete(ctx, tasks)
	if err != nil {
		return nil, err
	}
	p.Progress = c.Progress
	if c.Derived {
		p.Status = c.Status
	}
	p.UpdatedAt = a.clock.Now()
	if err := a.projects.Update(ctx, p); err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "project recomputed", "project_id", projectID, "progress", p.Progress, "status", string(p.Status), "tasks", len(tasks))
	return a.projects.Get(ctx, projectID)
}

// ApplyDelayStatus fills p's derived delay fields from its delayed leaf
// tasks. A project without tasks is delayed when its end date has passed
// and it is not completed.
func (a *Aggregator) ApplyDelayStatus(ctx context.Context, p *project.Project) error {
	tasks, err := a.tasks.List(ctx, task.Filter{ProjectID: p.ID})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		a.applyDateFallback(p)
		return nil
	}
	if err := a.engine.Rollup(ctx, tasks); err != nil {
		return err
	}
	leaves, err := a.walker.leaves(ctx, tasks)
	if err != nil {
		return err
	}
	var sum DelaySummary
	for _, t := range tasks {
		if leaves[t.ID] {
			sum.add(t)
		}
	}
	p.DelayedTasks = sum.DelayedCount
	p.TotalDelayedDays = sum.TotalDelayedDays
	p.IsDelayed = sum.DelayedCount > 0
	return nil
}

func (a *Aggregator) ApplyDelayStatusAll(ctx context.Context, projects []*project.Project) error {
	for _, p := range projects {
		if err := a.ApplyDelayStatus(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) applyDateFallback(p *project.Project) {
	p.DelayedTasks = 0
	p.TotalDelayedDays = 0
	p.IsDelayed = p.EndDate != nil &&
		p.Status != project.StatusCompleted &&
		p.EndDate.Before(clock.Today(a.clock))
}
