package repositoryimpl

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/cerr"
	"github.com/kazz187/wbsguild/pkg/storage"
)

const tasksPrefix = "tasks"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", tasksPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	return decode(data)
}

func (r *YAMLRepository) List(ctx context.Context, f task.Filter) ([]*task.Task, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(t *task.Task) bool { return !f.Match(t) }), nil
}

func (r *YAMLRepository) ListByParent(ctx context.Context, parentID string) ([]*task.Task, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	children := make([]*task.Task, 0)
	for _, t := range all {
		if parentID != "" && t.ParentTaskID == parentID {
			children = append(children, t)
		}
	}
	return children, nil
}

func (r *YAMLRepository) ListByParents(ctx context.Context, parentIDs []string) (map[string][]*task.Task, error) {
	out := make(map[string][]*task.Task)
	if len(parentIDs) == 0 {
		return out, nil
	}
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		if id != "" {
			wanted[id] = struct{}{}
		}
	}
	for _, t := range all {
		if _, ok := wanted[t.ParentTaskID]; ok {
			out[t.ParentTaskID] = append(out[t.ParentTaskID], t)
		}
	}
	return out, nil
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("task", err)
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, t *task.Task) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := r.storage.Write(ctx, path(t.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

// all loads every stored task ordered by creation time, then id.
func (r *YAMLRepository) all(ctx context.Context) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, tasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}
	tasks := make([]*task.Task, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			return nil, cerr.WrapStorageReadError("task", err)
		}
		t, err := decode(data)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	slices.SortStableFunc(tasks, func(a, b *task.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tasks, nil
}

func decode(data []byte) (*task.Task, error) {
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task: %w", err))
	}
	return &t, nil
}
