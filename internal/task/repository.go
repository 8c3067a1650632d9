package task

import "context"

// Filter narrows List. Zero-valued fields match everything.
type Filter struct {
	ProjectID  string
	Status     Status
	AssigneeID string
}

func (f Filter) Match(t *Task) bool {
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	return true
}

// Repository errors are *cerr.Error: NotFound for unknown ids, Internal for
// store failures.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	// List returns matching tasks ordered by creation time.
	List(ctx context.Context, f Filter) ([]*Task, error)
	// ListByParent returns the direct children of parentID, empty if none.
	ListByParent(ctx context.Context, parentID string) ([]*Task, error)
	// ListByParents returns the direct children of every id in parentIDs,
	// keyed by parent id and ordered by creation time. Parents without
	// children have no entry. It reads the store once.
	ListByParents(ctx context.Context, parentIDs []string) (map[string][]*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}
