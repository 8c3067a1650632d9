package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/internal/permission"
	permissionrepo "github.com/kazz187/wbsguild/internal/permission/repositoryimpl"
	"github.com/kazz187/wbsguild/internal/project"
	projectrepo "github.com/kazz187/wbsguild/internal/project/repositoryimpl"
	"github.com/kazz187/wbsguild/internal/schedule"
	"github.com/kazz187/wbsguild/internal/task"
	taskrepo "github.com/kazz187/wbsguild/internal/task/repositoryimpl"
	"github.com/kazz187/wbsguild/pkg/cerr"
	"github.com/kazz187/wbsguild/pkg/clock"
	"github.com/kazz187/wbsguild/pkg/date"
	"github.com/kazz187/wbsguild/pkg/storage"
)

type testServer struct {
	ctx      context.Context
	today    date.Date
	clock    *clock.FakeClock
	router   chi.Router
	tasks    task.Repository
	projects project.Repository
	perms    permission.Repository
	events   <-chan *eventbus.Event
	seq      int
}

// header is a set of request headers.
type header map[string]string

func as(userID, role string) header {
	h := header{}
	if userID != "" {
		h[HeaderUserID] = userID
	}
	if role != "" {
		h[HeaderUserRole] = role
	}
	return h
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ts := &testServer{
		ctx:      context.Background(),
		today:    date.MustParse("2024-06-15"),
		clock:    clock.FakeOn(date.MustParse("2024-06-15")),
		tasks:    taskrepo.NewYAMLRepository(s),
		projects: projectrepo.NewYAMLRepository(s),
		perms:    permissionrepo.NewYAMLRepository(s),
	}
	for _, code := range []string{PermTaskCreate, PermProjectCreate, PermPermissionManage} {
		require.NoError(t, ts.perms.UpsertPermission(ts.ctx, &permission.Permission{ID: code, Code: code, Name: code}))
	}
	require.NoError(t, ts.perms.UpsertRoleBinding(ts.ctx, &permission.RoleBinding{
		Role:  "manager",
		Codes: []string{PermPermissionManage, PermProjectCreate, PermTaskCreate},
	}))
	require.NoError(t, ts.perms.UpsertRoleBinding(ts.ctx, &permission.RoleBinding{
		Role:  "member",
		Codes: []string{PermTaskCreate},
	}))

	svc := schedule.NewServices(ts.tasks, ts.projects, ts.clock)
	checker := permission.NewChecker(permission.NewCache(ts.perms), ts.perms, ts.projects)
	bus := eventbus.New()
	_, ts.events = bus.Subscribe(256)

	h := NewHandler(ts.tasks, ts.projects, svc, checker, bus, ts.clock)
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	h.Routes(r)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, h header) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) daysAgo(n int) *date.Date {
	return date.Ptr(ts.today.AddDays(-n))
}

// seedProject stores p directly, owned by "owner" unless set.
func (ts *testServer) seedProject(t *testing.T, p *project.Project) *project.Project {
	t.Helper()
	if p.OwnerID == "" {
		p.OwnerID = "owner"
	}
	if p.Status == "" {
		p.Status = project.StatusPlanning
	}
	p.EnsureOwnerMember()
	require.NoError(t, ts.projects.Create(ts.ctx, p))
	return p
}

// seedTask stores tk directly in project "p1" unless set.
func (ts *testServer) seedTask(t *testing.T, tk *task.Task) *task.Task {
	t.Helper()
	if tk.ProjectID == "" {
		tk.ProjectID = "p1"
	}
	if tk.Status == "" {
		tk.Status = task.StatusTodo
	}
	ts.seq++
	tk.CreatedAt = time.Date(2024, 1, 1, 0, 0, ts.seq, 0, time.UTC)
	tk.UpdatedAt = tk.CreatedAt
	require.NoError(t, ts.tasks.Create(ts.ctx, tk))
	return tk
}

// drain returns the events published so far.
func (ts *testServer) drain() []*eventbus.Event {
	var events []*eventbus.Event
	for {
		select {
		case ev := <-ts.events:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventTypes(events []*eventbus.Event) []eventbus.EventType {
	types := make([]eventbus.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}
