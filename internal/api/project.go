package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/internal/project"
	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/cerr"
	"github.com/kazz187/wbsguild/pkg/date"
)

type createProjectRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      project.Status `json:"status"`
	Priority    string         `json:"priority"`
	StartDate   *date.Date     `json:"startDate"`
	EndDate     *date.Date     `json:"endDate"`
	OwnerID     string         `json:"ownerId"`
	Color       string         `json:"color"`
	MemberIDs   []string       `json:"memberIds"`
}

// updateProjectRequest is a partial update: nil fields are left unchanged.
// A non-nil MemberIDs replaces the member list.
type updateProjectRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Status      *project.Status `json:"status"`
	Priority    *string         `json:"priority"`
	StartDate   *date.Date      `json:"startDate"`
	EndDate     *date.Date      `json:"endDate"`
	OwnerID     *string         `json:"ownerId"`
	Color       *string         `json:"color"`
	MemberIDs   []string        `json:"memberIds"`
}

type projectStats struct {
	TotalProjects  int `json:"totalProjects"`
	ActiveProjects int `json:"activeProjects"`
}

type deleteProjectResponse struct {
	DeletedProjectID string   `json:"deletedProjectId"`
	DeletedTaskIDs   []string `json:"deletedTaskIds"`
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	f := project.Filter{
		Status:   project.Status(q.Get("status")),
		OwnerID:  q.Get("ownerId"),
		MemberID: q.Get("memberId"),
	}
	if f.Status != "" && !f.Status.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", f.Status), nil)
		return
	}
	projects, err := h.projects.List(ctx, f)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.aggregator.ApplyDelayStatusAll(ctx, projects); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, projects)
}

// getProject refreshes the stored progress and status before answering.
// A recomputed event is published only when either of them moved.
func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	before, err := h.projects.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	p, err := h.aggregator.RecomputeProject(ctx, before.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.aggregator.ApplyDelayStatus(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if p.Progress != before.Progress || p.Status != before.Status {
		h.publish(eventbus.EventProjectRecomputed, p.ID, fmt.Sprintf("progress=%d status=%s", p.Progress, p.Status), p.ID)
	}
	cerr.SetJSONResponse(ctx, p)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name is required", nil)
		return
	}
	if req.Status == "" {
		req.Status = project.StatusPlanning
	}
	if !req.Status.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", req.Status), nil)
		return
	}
	if err := validateDates(req.StartDate, req.EndDate); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = callerFrom(r).UserID
	}

	now := h.clock.Now()
	p := &project.Project{
		ID:          project.NewID(),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		OwnerID:     req.OwnerID,
		Color:       req.Color,
		MemberIDs:   req.MemberIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.EnsureOwnerMember()
	if err := h.projects.Create(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	h.publish(eventbus.EventProjectCreated, p.ID, p.Name, p.ID)

	if err := h.aggregator.ApplyDelayStatus(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, p)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	p, err := h.projects.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.requireOwner(ctx, callerFrom(r), p, true); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name must not be empty", nil)
			return
		}
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", *req.Status), nil)
			return
		}
		p.Status = *req.Status
	}
	if req.Priority != nil {
		p.Priority = *req.Priority
	}
	if req.StartDate != nil {
		p.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		p.EndDate = req.EndDate
	}
	if err := validateDates(p.StartDate, p.EndDate); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.OwnerID != nil && *req.OwnerID != "" {
		p.OwnerID = *req.OwnerID
	}
	if req.Color != nil {
		p.Color = *req.Color
	}
	if req.MemberIDs != nil {
		p.MemberIDs = req.MemberIDs
	}
	p.EnsureOwnerMember()
	p.UpdatedAt = h.clock.Now()

	if err := h.projects.Update(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	h.publish(eventbus.EventProjectUpdated, p.ID, "", p.ID)

	if err := h.aggregator.ApplyDelayStatus(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, p)
}

// deleteProject removes the project, its memberships and all of its tasks.
func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.projects.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := h.requireOwner(ctx, callerFrom(r), p, false); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := h.tasks.List(ctx, task.Filter{ProjectID: p.ID})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	deleted := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if err := h.tasks.Delete(ctx, t.ID); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		deleted = append(deleted, t.ID)
	}
	if err := h.projects.Delete(ctx, p.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	h.publish(eventbus.EventProjectDeleted, p.ID, p.Name, p.ID)
	cerr.SetJSONResponse(ctx, deleteProjectResponse{DeletedProjectID: p.ID, DeletedTaskIDs: deleted})
}

func (h *Handler) listProjectTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.projects.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := h.tasks.List(ctx, task.Filter{ProjectID: id})
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

func (h *Handler) projectDelayStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.projects.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	stats, err := h.reporter.ProjectDelayStats(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, stats)
}

func (h *Handler) projectStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projects, err := h.projects.List(ctx, project.Filter{})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	stats := projectStats{TotalProjects: len(projects)}
	for _, p := range projects {
		if p.Status == project.StatusActive {
			stats.ActiveProjects++
		}
	}
	cerr.SetJSONResponse(ctx, stats)
}
