package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kazz187/wbsguild/internal/project"
	projectrepo "github.com/kazz187/wbsguild/internal/project/repositoryimpl"
	"github.com/kazz187/wbsguild/internal/task"
	taskrepo "github.com/kazz187/wbsguild/internal/task/repositoryimpl"
	"github.com/kazz187/wbsguild/pkg/clock"
	"github.com/kazz187/wbsguild/pkg/date"
	"github.com/kazz187/wbsguild/pkg/storage"
)

type fixture struct {
	ctx      context.Context
	today    date.Date
	clock    *clock.FakeClock
	tasks    task.Repository
	projects project.Repository

	walker     *Walker
	engine     *Engine
	aggregator *Aggregator
	recorder   *Recorder
	reporter   *Reporter

	seq int
}

func newFixture(t *testing.T, today string) *fixture {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		ctx:      context.Background(),
		today:    date.MustParse(today),
		clock:    clock.FakeOn(date.MustParse(today)),
		tasks:    taskrepo.NewYAMLRepository(s),
		projects: projectrepo.NewYAMLRepository(s),
	}
	svc := NewServices(f.tasks, f.projects, f.clock)
	f.walker = svc.Walker
	f.engine = svc.Engine
	f.aggregator = svc.Aggregator
	f.recorder = svc.Recorder
	f.reporter = svc.Reporter
	return f
}

// daysAgo returns today shifted back by n days; negative n is in the future.
func (f *fixture) daysAgo(n int) *date.Date {
	return date.Ptr(f.today.AddDays(-n))
}

// addTask stores tk, defaulting the project to "p1" and the status to todo.
// Creation times increase with every call so listing order is insertion
// order.
func (f *fixture) addTask(t *testing.T, tk *task.Task) *task.Task {
	t.Helper()
	if tk.ProjectID == "" {
		tk.ProjectID = "p1"
	}
	if tk.Status == "" {
		tk.Status = task.StatusTodo
	}
	f.seq++
	tk.CreatedAt = time.Date(2020, 1, 1, 0, 0, f.seq, 0, time.UTC)
	tk.UpdatedAt = tk.CreatedAt
	require.NoError(t, f.tasks.Create(f.ctx, tk))
	return tk
}

func (f *fixture) addProject(t *testing.T, p *project.Project) *project.Project {
	t.Helper()
	if p.Status == "" {
		p.Status = project.StatusPlanning
	}
	require.NoError(t, f.projects.Create(f.ctx, p))
	return p
}

func (f *fixture) get(t *testing.T, id string) *task.Task {
	t.Helper()
	tk, err := f.tasks.Get(f.ctx, id)
	require.NoError(t, err)
	return tk
}

func taskIDs(tasks []*task.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
