// Package api exposes tasks, projects and permissions over HTTP. Handlers
// report results through cerr.SetJSONResponse and cerr.SetJSONError, so the
// router must install cerr.NewJSONResponseChiMiddleware.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/internal/permission"
	"github.com/kazz187/wbsguild/internal/project"
	"github.com/kazz187/wbsguild/internal/schedule"
	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/cerr"
	"github.com/kazz187/wbsguild/pkg/clock"
)

const (
	PermTaskCreate       = "task:create"
	PermProjectCreate    = "project:create"
	PermPermissionManage = "permission:manage"
)

type Handler struct {
	tasks      task.Repository
	projects   project.Repository
	walker     *schedule.Walker
	engine     *schedule.Engine
	aggregator *schedule.Aggregator
	recorder   *schedule.Recorder
	reporter   *schedule.Reporter
	checker    *permission.Checker
	eventBus   *eventbus.Bus
	clock      clock.Clock
}

func NewHandler(
	tasks task.Repository,
	projects project.Repository,
	svc *schedule.Services,
	checker *permission.Checker,
	eventBus *eventbus.Bus,
	clk clock.Clock,
) *Handler {
	return &Handler{
		tasks:      tasks,
		projects:   projects,
		walker:     svc.Walker,
		engine:     svc.Engine,
		aggregator: svc.Aggregator,
		recorder:   svc.Recorder,
		reporter:   svc.Reporter,
		checker:    checker,
		eventBus:   eventBus,
		clock:      clk,
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Use(identify)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.With(h.RequirePermission(PermTaskCreate)).Post("/", h.createTask)
		r.Get("/stats", h.taskStats)
		r.Get("/delayed", h.delayedTasks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getTask)
			r.Put("/", h.updateTask)
			r.Delete("/", h.deleteTask)
			r.Patch("/status", h.updateTaskStatus)
			r.Patch("/progress", h.updateTaskProgress)
			r.Post("/delay", h.recordTaskDelay)
			r.Get("/children", h.listSubtasks)
			r.Get("/delay-summary", h.taskDelaySummary)
		})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.With(h.RequirePermission(PermProjectCreate)).Post("/", h.createProject)
		r.Get("/stats", h.projectStats)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getProject)
			r.Put("/", h.updateProject)
			r.Delete("/", h.deleteProject)
			r.Get("/tasks", h.listProjectTasks)
			r.Get("/delay-stats", h.projectDelayStats)
		})
	})

	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.listPermissions)
		r.Get("/roles/{role}", h.rolePermissions)
		r.Get("/check", h.checkPermission)
		r.Get("/check-project", h.checkProjectPermission)
		r.Get("/is-owner", h.isProjectOwner)
		r.Get("/is-member", h.isProjectMember)
		r.With(h.RequirePermission(PermPermissionManage)).Post("/refresh", h.refreshPermissions)
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return cerr.NewError(cerr.InvalidArgument, "request body is empty", nil)
		}
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err).AddDetailMessage(err.Error())
	}
	return nil
}

func requireQuery(r *http.Request, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v := r.URL.Query().Get(k)
		if v == "" {
			return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("query parameter %q is required", k), nil)
		}
		values[k] = v
	}
	return values, nil
}

func (h *Handler) publish(eventType eventbus.EventType, resourceID, payload, projectID string) {
	var metadata map[string]string
	if projectID != "" {
		metadata = map[string]string{"project_id": projectID}
	}
	h.eventBus.PublishNew(eventType, resourceID, payload, metadata)
}
