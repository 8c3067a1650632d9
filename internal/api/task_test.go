package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/internal/project"
	"github.com/kazz187/wbsguild/internal/schedule"
	"github.com/kazz187/wbsguild/internal/task"
)

func TestCreateTaskRecomputesProject(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1", Status: project.StatusOnHold})
	owner := as("owner", "manager")

	rec := ts.do(t, http.MethodPost, "/tasks", createTaskRequest{ProjectID: "p1", Title: "design"}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[task.Task](t, rec)
	assert.Len(t, created.ID, 9)
	assert.Equal(t, task.StatusTodo, created.Status)
	assert.Zero(t, created.Progress)
	assert.Zero(t, created.ActualHours)

	p, err := ts.projects.Get(ts.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, project.StatusPlanning, p.Status, "recomputed from the new task")
	assert.Equal(t, []eventbus.EventType{eventbus.EventTaskCreated}, eventTypes(ts.drain()))

	rec = ts.do(t, http.MethodPost, "/tasks", createTaskRequest{ProjectID: "p1", ParentTaskID: created.ID, Title: "api", Status: task.StatusDone}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/tasks", createTaskRequest{ProjectID: "p1", ParentTaskID: created.ID, Title: "db"}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Two leaves, one done; the root no longer counts.
	p, err = ts.projects.Get(ts.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Progress)
	assert.Equal(t, project.StatusActive, p.Status)
}

func TestCreateTaskAuthorization(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1", MemberIDs: []string{"dev"}})
	body := createTaskRequest{ProjectID: "p1", Title: "x"}

	tests := []struct {
		name     string
		header   header
		wantCode int
		wantErr  string
	}{
		{"no role", as("dev", ""), http.StatusUnauthorized, "unauthenticated"},
		{"role without permission", as("dev", "guest"), http.StatusForbidden, "permission_denied"},
		{"not a member", as("stranger", "member"), http.StatusForbidden, "permission_denied"},
		{"member", as("dev", "member"), http.StatusCreated, ""},
		{"anonymous with role", as("", "member"), http.StatusCreated, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/tasks", body, tt.header)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decode[errorBody](t, rec).Code)
			}
		})
	}
}

func TestCreateTaskValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1"})
	ts.seedProject(t, &project.Project{ID: "p2"})
	ts.seedTask(t, &task.Task{ID: "other", ProjectID: "p2"})
	mgr := as("", "manager")

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"missing title", createTaskRequest{ProjectID: "p1"}, http.StatusBadRequest},
		{"missing project", createTaskRequest{Title: "x"}, http.StatusBadRequest},
		{"unknown project", createTaskRequest{ProjectID: "nope", Title: "x"}, http.StatusNotFound},
		{"unknown status", createTaskRequest{ProjectID: "p1", Title: "x", Status: "blocked"}, http.StatusBadRequest},
		{"progress out of range", createTaskRequest{ProjectID: "p1", Title: "x", Progress: 101}, http.StatusBadRequest},
		{"end before start", createTaskRequest{ProjectID: "p1", Title: "x", StartDate: ts.daysAgo(0), EndDate: ts.daysAgo(1)}, http.StatusBadRequest},
		{"unknown parent", createTaskRequest{ProjectID: "p1", Title: "x", ParentTaskID: "ghost"}, http.StatusBadRequest},
		{"parent in another project", createTaskRequest{ProjectID: "p1", Title: "x", ParentTaskID: "other"}, http.StatusBadRequest},
		{"unknown field", `{"projectId":"p1","title":"x","colour":"red"}`, http.StatusBadRequest},
		{"empty body", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/tasks", tt.body, mgr)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestGetTaskRollsUp(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTask(t, &task.Task{ID: "A", Status: task.StatusInProgress, EndDate: ts.daysAgo(1)})
	ts.seedTask(t, &task.Task{ID: "B", ParentTaskID: "A", Status: task.StatusInProgress, EndDate: ts.daysAgo(10)})
	ts.seedTask(t, &task.Task{ID: "C", ParentTaskID: "A", Status: task.StatusDone, EndDate: ts.daysAgo(20)})

	rec := ts.do(t, http.MethodGet, "/tasks/A", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[task.Task](t, rec)
	assert.True(t, got.IsDelayed)
	assert.Equal(t, 1, got.ChildrenDelayedCount)
	assert.Equal(t, 10, got.ChildrenTotalDelayedDays)

	rec = ts.do(t, http.MethodGet, "/tasks/A/children", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	children := decode[[]task.Task](t, rec)
	require.Len(t, children, 2)
	assert.Equal(t, 10, children[0].DelayedDays)

	rec = ts.do(t, http.MethodGet, "/tasks/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Code)
}

func TestListTasksFilters(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTask(t, &task.Task{ID: "a", AssigneeID: "u1"})
	ts.seedTask(t, &task.Task{ID: "b", ParentTaskID: "a", Status: task.StatusDone})
	ts.seedTask(t, &task.Task{ID: "c", ProjectID: "p2"})

	ids := func(path string) []string {
		rec := ts.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, tk := range decode[[]task.Task](t, rec) {
			out = append(out, tk.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids("/tasks"))
	assert.Equal(t, []string{"a", "b"}, ids("/tasks?projectId=p1"))
	assert.Equal(t, []string{"b"}, ids("/tasks?status=done"))
	assert.Equal(t, []string{"a"}, ids("/tasks?assigneeId=u1"))
	assert.Equal(t, []string{"b"}, ids("/tasks?parentTaskId=a"))

	rec := ts.do(t, http.MethodGet, "/tasks?status=blocked", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTask(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1"})
	ts.seedTask(t, &task.Task{ID: "root"})
	ts.seedTask(t, &task.Task{ID: "a", ParentTaskID: "root"})
	ts.seedTask(t, &task.Task{ID: "a1", ParentTaskID: "a"})
	ts.seedTask(t, &task.Task{ID: "b", ParentTaskID: "root"})

	title := "renamed"
	hours := 3.5
	rec := ts.do(t, http.MethodPut, "/tasks/a", updateTaskRequest{Title: &title, ActualHours: &hours}, as("owner", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[task.Task](t, rec)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, 3.5, got.ActualHours)
	assert.Equal(t, "root", got.ParentTaskID, "unset fields are kept")

	// Moving a task under its own descendant would create a cycle.
	parent := "a1"
	rec = ts.do(t, http.MethodPut, "/tasks/a", updateTaskRequest{ParentTaskID: &parent}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	self := "a"
	rec = ts.do(t, http.MethodPut, "/tasks/a", updateTaskRequest{ParentTaskID: &self}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Re-parenting b under a1 leaves a1 interior, so the recomputed project
	// only has b as a leaf.
	parent = "a1"
	status := task.StatusDone
	rec = ts.do(t, http.MethodPut, "/tasks/b", updateTaskRequest{ParentTaskID: &parent, Status: &status}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p, err := ts.projects.Get(ts.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, project.StatusCompleted, p.Status)

	rec = ts.do(t, http.MethodPut, "/tasks/a", updateTaskRequest{Title: &title}, as("stranger", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateTaskStatusAndProgress(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1"})
	ts.seedTask(t, &task.Task{ID: "a", Progress: 30})
	ts.seedTask(t, &task.Task{ID: "b"})

	rec := ts.do(t, http.MethodPatch, "/tasks/a/status", statusRequest{Status: task.StatusDone}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[task.Task](t, rec)
	assert.Equal(t, task.StatusDone, got.Status)
	assert.Equal(t, 100, got.Progress)

	p, err := ts.projects.Get(ts.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Progress)
	assert.Equal(t, project.StatusActive, p.Status)

	progress := 80
	rec = ts.do(t, http.MethodPatch, "/tasks/b/progress", progressRequest{Progress: &progress}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[task.Task](t, rec)
	assert.Equal(t, 80, got.Progress)
	assert.Equal(t, task.StatusTodo, got.Status, "progress never changes the status")

	progress = 150
	rec = ts.do(t, http.MethodPatch, "/tasks/b/progress", progressRequest{Progress: &progress}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPatch, "/tasks/b/status", statusRequest{Status: "blocked"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTaskCascades(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1"})
	ts.seedTask(t, &task.Task{ID: "root", AssigneeID: "dev"})
	ts.seedTask(t, &task.Task{ID: "a", ParentTaskID: "root"})
	ts.seedTask(t, &task.Task{ID: "a1", ParentTaskID: "a"})
	ts.seedTask(t, &task.Task{ID: "b", ParentTaskID: "root"})
	ts.seedTask(t, &task.Task{ID: "keep", Status: task.StatusDone})

	rec := ts.do(t, http.MethodDelete, "/tasks/root", nil, as("stranger", "member"))
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/tasks/root", nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/tasks/root", nil, as("dev", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"b", "a1", "a", "root"}, decode[deleteTaskResponse](t, rec).DeletedTaskIDs)

	for _, id := range []string{"root", "a", "a1", "b"} {
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/tasks/"+id, nil, nil).Code, id)
	}
	p, err := ts.projects.Get(ts.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Progress)
}

func TestDeleteTaskAsAdminOrOwner(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1", OwnerID: "boss"})
	ts.seedTask(t, &task.Task{ID: "a"})
	ts.seedTask(t, &task.Task{ID: "b"})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/tasks/a", nil, as("", RoleAdmin)).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/tasks/b", nil, as("boss", "")).Code)
}

func TestRecordTaskDelay(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProject(t, &project.Project{ID: "p1"})
	oldEnd := ts.daysAgo(-3)
	ts.seedTask(t, &task.Task{ID: "t1", EndDate: oldEnd})

	newEnd := oldEnd.AddDays(5)
	rec := ts.do(t, http.MethodPost, "/tasks/t1/delay", delayRequest{NewEndDate: &newEnd, DelayReason: "vendor delay"}, as("owner", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[task.Task](t, rec)
	require.NotNil(t, got.OriginalEndDate)
	assert.Equal(t, *oldEnd, *got.OriginalEndDate)
	assert.Equal(t, newEnd, *got.EndDate)
	assert.Equal(t, 5, got.DelayedDays)
	assert.Equal(t, 1, got.DelayCount)
	assert.Equal(t, "vendor delay", got.DelayReason)

	events := ts.drain()
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.EventTaskDelayed, events[0].Type)
	assert.Equal(t, "p1", events[0].Metadata["project_id"])

	earlier := oldEnd.AddDays(1)
	rec = ts.do(t, http.MethodPost, "/tasks/t1/delay", delayRequest{NewEndDate: &earlier}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "invalid_argument", body.Code)
	assert.Equal(t, []string{"current end date is " + newEnd.String()}, body.Details)

	rec = ts.do(t, http.MethodPost, "/tasks/t1/delay", `{"delayReason":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, "/tasks/ghost/delay", delayRequest{NewEndDate: &newEnd}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPost, "/tasks/t1/delay", delayRequest{NewEndDate: &newEnd}, as("stranger", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDelayReports(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTask(t, &task.Task{ID: "R"})
	ts.seedTask(t, &task.Task{ID: "I", ParentTaskID: "R", EndDate: ts.daysAgo(3)})
	ts.seedTask(t, &task.Task{ID: "L1", ParentTaskID: "I", EndDate: ts.daysAgo(8)})
	ts.seedTask(t, &task.Task{ID: "L2", ParentTaskID: "R", EndDate: ts.daysAgo(2)})
	ts.seedTask(t, &task.Task{ID: "D", Status: task.StatusDone, DelayedDays: 4})

	rec := ts.do(t, http.MethodGet, "/tasks/R/delay-summary", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[delaySummaryResponse](t, rec)
	assert.Equal(t, schedule.DelaySummary{DelayedCount: 2, TotalDelayedDays: 5}, summary.Children)
	assert.Equal(t, schedule.DelaySummary{DelayedCount: 2, TotalDelayedDays: 10}, summary.Descendants)

	rec = ts.do(t, http.MethodGet, "/tasks/delayed?projectId=p1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]task.Task](t, rec), 3)
	rec = ts.do(t, http.MethodGet, "/tasks/delayed?projectId=p1&includeCompleted=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]task.Task](t, rec), 4)
	rec = ts.do(t, http.MethodGet, "/tasks/delayed?includeCompleted=maybe", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/tasks/stats?projectId=p1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, taskStats{TotalTasks: 5, TodoTasks: 4, DoneTasks: 1}, decode[taskStats](t, rec))
}
