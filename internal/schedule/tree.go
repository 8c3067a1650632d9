package schedule

import (
	"context"
	"log/slog"
	"slices"

	"github.com/kazz187/wbsguild/internal/task"
)

// Walker navigates the parent/child relation of tasks. Nothing is cached:
// every call asks the repository, which is authoritative.
type Walker struct {
	tasks task.Repository
}

func NewWalker(tasks task.Repository) *Walker {
	return &Walker{tasks: tasks}
}

// IsLeaf reports whether id currently has no children.
func (w *Walker) IsLeaf(ctx context.Context, id string) (bool, error) {
	children, err := w.tasks.ListByParent(ctx, id)
	if err != nil {
		return false, err
	}
	return len(children) == 0, nil
}

// Descendants returns every task below id, depth first in pre-order,
// excluding id itself.
func (w *Walker) Descendants(ctx context.Context, id string) ([]*task.Task, error) {
	st, err := w.walk(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.nodes, nil
}

// subtree is the result of one walk below a root.
type subtree struct {
	nodes      []*task.Task
	childCount map[string]int
}

// isLeaf answers from the walk's own repository reads, so a rollup sees
// one consistent snapshot of the tree.
func (s *subtree) isLeaf(id string) bool {
	return s.childCount[id] == 0
}

// walk loads the subtree one level per repository read, then emits it in
// pre-order. Each task is emitted at most once; a child that was already
// reached (a parent cycle) is skipped and logged.
func (w *Walker) walk(ctx context.Context, rootID string) (*subtree, error) {
	st := &subtree{childCount: make(map[string]int)}
	kids := make(map[string][]*task.Task)
	visited := map[string]struct{}{rootID: {}}

	for level := []string{rootID}; len(level) > 0; {
		byParent, err := w.tasks.ListByParents(ctx, level)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, parentID := range level {
			children := byParent[parentID]
			st.childCount[parentID] = len(children)
			for _, c := range children {
				if _, seen := visited[c.ID]; seen {
					slog.WarnContext(ctx, "task tree cycle detected", "parent_id", parentID, "task_id", c.ID)
					continue
				}
				visited[c.ID] = struct{}{}
				kids[parentID] = append(kids[parentID], c)
				next = append(next, c.ID)
			}
		}
		level = next
	}

	// Reverse so the first child is popped first.
	stack := slices.Clone(kids[rootID])
	slices.Reverse(stack)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		st.nodes = append(st.nodes, t)
		for _, c := range slices.Backward(kids[t.ID]) {
			stack = append(stack, c)
		}
	}
	return st, nil
}

// leaves reports, for every task in tasks, whether it has no children.
func (w *Walker) leaves(ctx context.Context, tasks []*task.Task) (map[string]bool, error) {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	byParent, err := w.tasks.ListByParents(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = len(byParent[id]) == 0
	}
	return out, nil
}
