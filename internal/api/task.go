package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/internal/schedule"
	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/cerr"
	"github.com/kazz187/wbsguild/pkg/date"
)

type createTaskRequest struct {
	ProjectID      string        `json:"projectId"`
	ParentTaskID   string        `json:"parentTaskId"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Status         task.Status   `json:"status"`
	Priority       task.Priority `json:"priority"`
	AssigneeID     string        `json:"assigneeId"`
	StartDate      *date.Date    `json:"startDate"`
	EndDate        *date.Date    `json:"endDate"`
	EstimatedHours float64       `json:"estimatedHours"`
	Progress       int           `json:"progress"`
}

// updateTaskRequest is a partial update: nil fields are left unchanged.
type updateTaskRequest struct {
	ParentTaskID   *string        `json:"parentTaskId"`
	Title          *string        `json:"title"`
	Description    *string        `json:"description"`
	Status         *task.Status   `json:"status"`
	Priority       *task.Priority `json:"priority"`
	AssigneeID     *string        `json:"assigneeId"`
	StartDate      *date.Date     `json:"startDate"`
	EndDate        *date.Date     `json:"endDate"`
	EstimatedHours *float64       `json:"estimatedHours"`
	ActualHours    *float64       `json:"actualHours"`
	Progress       *int           `json:"progress"`
}

type statusRequest struct {
	Status task.Status `json:"status"`
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

type delayRequest struct {
	NewEndDate  *date.Date `json:"newEndDate"`
	DelayReason string     `json:"delayReason"`
}

type taskStats struct {
	TotalTasks      int `json:"totalTasks"`
	TodoTasks       int `json:"todoTasks"`
	InProgressTasks int `json:"inProgressTasks"`
	DoneTasks       int `json:"doneTasks"`
}

type delaySummaryResponse struct {
	Children    schedule.DelaySummary `json:"children"`
	Descendants schedule.DelaySummary `json:"descendants"`
}

type deleteTaskResponse struct {
	DeletedTaskIDs []string `json:"deletedTaskIds"`
}

func validateProgress(p int) error {
	if p < 0 || p > 100 {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("progress %d is out of range 0-100", p), nil)
	}
	return nil
}

func validateDates(start, end *date.Date) error {
	if start != nil && end != nil && end.Before(*start) {
		return cerr.NewError(cerr.InvalidArgument, "end date precedes start date", nil)
	}
	return nil
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		tasks []*task.Task
		err   error
	)
	if parentID := q.Get("parentTaskId"); parentID != "" {
		tasks, err = h.tasks.ListByParent(ctx, parentID)
	} else {
		f := task.Filter{
			ProjectID:  q.Get("projectId"),
			Status:     task.Status(q.Get("status")),
			AssigneeID: q.Get("assigneeId"),
		}
		if f.Status != "" && !f.Status.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", f.Status), nil)
			return
		}
		tasks, err = h.tasks.List(ctx, f)
	}
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.engine.Rollup(ctx, tasks); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, tasks)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.tasks.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.engine.RollupOne(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (h *Handler) listSubtasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	children, err := h.tasks.ListByParent(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.engine.Rollup(ctx, children); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, children)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := h.newTask(ctx, callerFrom(r), &req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.tasks.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if _, err := h.aggregator.RecomputeProject(ctx, t.ProjectID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	h.publish(eventbus.EventTaskCreated, t.ID, t.Title, t.ProjectID)

	if err := h.engine.RollupOne(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, t)
}

func (h *Handler) newTask(ctx context.Context, c caller, req *createTaskRequest) (*task.Task, error) {
	if req.Title == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "title is required", nil)
	}
	if req.ProjectID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "projectId is required", nil)
	}
	if req.Status == "" {
		req.Status = task.StatusTodo
	}
	if !req.Status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown status %q", req.Status), nil)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", req.Priority), nil)
	}
	if err := validateProgress(req.Progress); err != nil {
		return nil, err
	}
	if err := validateDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if _, err := h.projects.Get(ctx, req.ProjectID); err != nil {
		return nil, err
	}
	if err := h.requireMember(ctx, c, req.ProjectID); err != nil {
		return nil, err
	}
	if req.ParentTaskID != "" {
		if err := h.checkParent(ctx, "", req.ParentTaskID, req.ProjectID); err != nil {
			return nil, err
		}
	}

	now := h.clock.Now()
	return &task.Task{
		ID:             task.NewID(),
		ProjectID:      req.ProjectID,
		ParentTaskID:   req.ParentTaskID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		EstimatedHours: req.EstimatedHours,
		Progress:       req.Progress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// checkParent verifies that parentID can be the parent of taskID: it exists
// in the same project and is neither taskID nor one of its descendants.
// taskID is empty for a task that does not exist yet.
func (h *Handler) checkParent(ctx context.Context, taskID, parentID, projectID string) error {
	parent, err := h.tasks.Get(ctx, parentID)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("parent task %s not found", parentID), err)
		}
		return err
	}
	if parent.ProjectID != projectID {
		return cerr.NewError(cerr.InvalidArgument, "parent task belongs to another project", nil)
	}
	if taskID == "" {
		return nil
	}
	if parentID == taskID {
		return cerr.NewError(cerr.InvalidArgument, "a task cannot be its own parent", nil)
	}
	descendants, err := h.walker.Descendants(ctx, taskID)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(descendants, func(d *task.Task) bool { return d.ID == parentID }) {
		return cerr.NewError(cerr.InvalidArgument, "parent task is a descendant of the task", nil)
	}
	return nil
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := h.tasks.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.requireMember(ctx, callerFrom(r), t.ProjectID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	reshaped, err := h.applyTaskUpdate(ctx, t, &req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t.UpdatedAt = h.clock.Now()
	if err := h.tasks.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	// Status and tree shape are the only inputs of project progress.
	if reshaped {
		if _, err := h.aggregator.RecomputeProject(ctx, t.ProjectID); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	h.publish(eventbus.EventTaskUpdated, t.ID, "", t.ProjectID)

	if err := h.engine.RollupOne(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

// applyTaskUpdate copies the set fields of req into t. It reports whether
// the status or the parent changed.
func (h *Handler) applyTaskUpdate(ctx context.Context, t *task.Task, req *updateTaskRequest) (bool, error) {
	var reshaped bool
	if req.Title != nil {
		if *req.Title == "" {
			return false, cerr.NewError(cerr.InvalidArgument, "title must not be empty", nil)
		}
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return false, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown status %q", *req.Status), nil)
		}
		reshaped = reshaped || *req.Status != t.Status
		t.Status = *req.Status
	}
	if req.Priority != nil {
		if *req.Priority != "" && !req.Priority.Valid() {
			return false, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", *req.Priority), nil)
		}
		t.Priority = *req.Priority
	}
	if req.AssigneeID != nil {
		t.AssigneeID = *req.AssigneeID
	}
	if req.StartDate != nil {
		t.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		t.EndDate = req.EndDate
	}
	if err := validateDates(t.StartDate, t.EndDate); err != nil {
		return false, err
	}
	if req.EstimatedHours != nil {
		t.EstimatedHours = *req.EstimatedHours
	}
	if req.ActualHours != nil {
		t.ActualHours = *req.ActualHours
	}
	if req.Progress != nil {
		if err := validateProgress(*req.Progress); err != nil {
			return false, err
		}
		t.Progress = *req.Progress
	}
	if req.ParentTaskID != nil && *req.ParentTaskID != t.ParentTaskID {
		if *req.ParentTaskID != "" {
			if err := h.checkParent(ctx, t.ID, *req.ParentTaskID, t.ProjectID); err != nil {
				return false, err
			}
		}
		t.ParentTaskID = *req.ParentTaskID
		reshaped = true
	}
	return reshaped, nil
}

func (h *Handler) updateTaskStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !req.Status.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", req.Status), nil)
		return
	}
	t, err := h.tasks.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.requireMember(ctx, callerFrom(r), t.ProjectID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	changed := t.Status != req.Status
	t.Status = req.Status
	if t.IsDone() {
		t.Progress = 100
	}
	t.UpdatedAt = h.clock.Now()
	if err := h.tasks.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if changed {
		if _, err := h.aggregator.RecomputeProject(ctx, t.ProjectID); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		h.publish(eventbus.EventTaskUpdated, t.ID, "status="+string(t.Status), t.ProjectID)
	}

	if err := h.engine.RollupOne(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

// updateTaskProgress stores the progress as given. The status is left to
// the user.
func (h *Handler) updateTaskProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Progress == nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "progress is required", nil)
		return
	}
	if err := validateProgress(*req.Progress); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := h.tasks.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.requireMember(ctx, callerFrom(r), t.ProjectID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t.Progress = *req.Progress
	t.UpdatedAt = h.clock.Now()
	if err := h.tasks.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	h.publish(eventbus.EventTaskUpdated, t.ID, "progress="+strconv.Itoa(t.Progress), t.ProjectID)

	if err := h.engine.RollupOne(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

// deleteTask removes the task and its whole subtree, deepest tasks first.
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.tasks.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.canDeleteTask(ctx, callerFrom(r), t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	descendants, err := h.walker.Descendants(ctx, t.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	deleted := make([]string, 0, len(descendants)+1)
	for _, d := range slices.Backward(descendants) {
		if err := h.tasks.Delete(ctx, d.ID); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		deleted = append(deleted, d.ID)
	}
	if err := h.tasks.Delete(ctx, t.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	deleted = append(deleted, t.ID)

	if _, err := h.aggregator.RecomputeProject(ctx, t.ProjectID); err != nil && !cerr.IsCode(err, cerr.NotFound) {
		cerr.SetJSONError(ctx, err)
		return
	}
	h.publish(eventbus.EventTaskDeleted, t.ID, strconv.Itoa(len(deleted))+" tasks", t.ProjectID)
	cerr.SetJSONResponse(ctx, deleteTaskResponse{DeletedTaskIDs: deleted})
}

func (h *Handler) recordTaskDelay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req delayRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.NewEndDate == nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "newEndDate is required", nil)
		return
	}
	id := chi.URLParam(r, "id")
	existing, err := h.tasks.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.requireMember(ctx, callerFrom(r), existing.ProjectID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := h.recorder.RecordDelay(ctx, id, *req.NewEndDate, req.DelayReason)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	h.publish(eventbus.EventTaskDelayed, t.ID, req.DelayReason, t.ProjectID)

	if err := h.engine.RollupOne(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (h *Handler) taskDelaySummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.tasks.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	children, err := h.engine.ChildrenSummary(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	descendants, err := h.engine.DescendantsSummary(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, delaySummaryResponse{Children: children, Descendants: descendants})
}

func (h *Handler) taskStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.reporter.StatusCounts(ctx, r.URL.Query().Get("projectId"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, taskStats{
		TotalTasks:      counts[task.StatusTodo] + counts[task.StatusInProgress] + counts[task.StatusDone],
		TodoTasks:       counts[task.StatusTodo],
		InProgressTasks: counts[task.StatusInProgress],
		DoneTasks:       counts[task.StatusDone],
	})
}

func (h *Handler) delayedTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	includeCompleted := false
	if v := q.Get("includeCompleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "includeCompleted must be a boolean", err)
			return
		}
		includeCompleted = b
	}
	tasks, err := h.reporter.DelayedTasks(ctx, q.Get("projectId"), includeCompleted)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, tasks)
}
