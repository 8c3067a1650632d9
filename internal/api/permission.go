package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/pkg/cerr"
)

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	perms, err := h.checker.ListPermissions(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, perms)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	perms, err := h.checker.PermissionsForRole(ctx, chi.URLParam(r, "role"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, perms)
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := requireQuery(r, "role", "permission")
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	ok, err := h.checker.HasPermission(ctx, q["role"], q["permission"])
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"hasPermission": ok})
}

func (h *Handler) checkProjectPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := requireQuery(r, "userId", "projectId")
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	ok, err := h.checker.HasProjectPermission(ctx, q["userId"], q["projectId"])
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"hasPermission": ok})
}

func (h *Handler) isProjectOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := requireQuery(r, "userId", "projectId")
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	ok, err := h.projects.IsOwner(ctx, q["projectId"], q["userId"])
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"isOwner": ok})
}

func (h *Handler) isProjectMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := requireQuery(r, "userId", "projectId")
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	ok, err := h.projects.IsMember(ctx, q["projectId"], q["userId"])
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"isMember": ok})
}

// refreshPermissions drops cached role permissions: those of ?role= or,
// without it, of every role.
func (h *Handler) refreshPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role := r.URL.Query().Get("role")
	h.checker.Refresh(role)

	scope := role
	if scope == "" {
		scope = "*"
	}
	h.publish(eventbus.EventPermissionsChanged, scope, "cache refreshed", "")
	cerr.SetJSONResponse(ctx, map[string]string{"refreshed": scope})
}
