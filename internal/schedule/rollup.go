package schedule

import (
	"context"
	"log/slog"

	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/clock"
	"github.com/kazz187/wbsguild/pkg/date"
)

// DelaySummary aggregates the delay of a set of tasks.
type DelaySummary struct {
	DelayedCount     int `json:"delayedCount"`
	TotalDelayedDays int `json:"totalDelayedDays"`
}

func (s *DelaySummary) add(t *task.Task) {
	if !t.IsDelayed {
		return
	}
	s.DelayedCount++
	s.TotalDelayedDays += t.DelayedDays
}

// Engine decorates tasks with their own delay and the delay of their leaf
// descendants.
type Engine struct {
	walker *Walker
	clock  clock.Clock
}

func NewEngine(walker *Walker, clk clock.Clock) *Engine {
	return &Engine{walker: walker, clock: clk}
}

// Rollup fills the derived delay fields of every task in tasks.
//
// All tasks are evaluated against the same day before any descendant summary
// is built. Descendants are re-evaluated while summarizing because they need
// not be part of tasks. Only delayed leaves are counted: an interior task's
// delay is already made of its children's.
func (e *Engine) Rollup(ctx context.Context, tasks []*task.Task) error {
	return e.rollup(ctx, tasks, clock.Today(e.clock))
}

func (e *Engine) RollupOne(ctx context.Context, t *task.Task) error {
	return e.rollup(ctx, []*task.Task{t}, clock.Today(e.clock))
}

func (e *Engine) rollup(ctx context.Context, tasks []*task.Task, today date.Date) error {
	for _, t := range tasks {
		Evaluate(t, today)
	}
	for _, t := range tasks {
		sum, err := e.descendantsSummary(ctx, t.ID, today)
		if err != nil {
			return err
		}
		t.ChildrenDelayedCount = sum.DelayedCount
		t.ChildrenTotalDelayedDays = sum.TotalDelayedDays
	}
	slog.DebugContext(ctx, "rollup finished", "tasks", len(tasks), "today", today.String())
	return nil
}

// DescendantsSummary returns the delay of the leaf tasks anywhere below id.
func (e *Engine) DescendantsSummary(ctx context.Context, id string) (DelaySummary, error) {
	return e.descendantsSummary(ctx, id, clock.Today(e.clock))
}

func (e *Engine) descendantsSummary(ctx context.Context, id string, today date.Date) (DelaySummary, error) {
	st, err := e.walker.walk(ctx, id)
	if err != nil {
		return DelaySummary{}, err
	}
	var sum DelaySummary
	for _, d := range st.nodes {
		Evaluate(d, today)
		if st.isLeaf(d.ID) {
			sum.add(d)
		}
	}
	return sum, nil
}

// ChildrenSummary returns the delay of id's direct children, leaf or not.
// The children are rolled up first.
func (e *Engine) ChildrenSummary(ctx context.Context, id string) (DelaySummary, error) {
	children, err := e.walker.tasks.ListByParent(ctx, id)
	if err != nil {
		return DelaySummary{}, err
	}
	if err := e.Rollup(ctx, children); err != nil {
		return DelaySummary{}, err
	}
	var sum DelaySummary
	for _, c := range children {
		sum.add(c)
	}
	return sum, nil
}
