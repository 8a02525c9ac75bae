package groups

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agora-qa/agora/internal/auth"
	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/shared"
)

// Handler wires HTTP endpoints for groups and group memberships.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *authz.Guard
	authMW    auth.Middleware
	authzMW   authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *authz.Guard, authMW auth.Middleware, authzMW authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		authMW:    authMW,
		authzMW:   authzMW,
		validator: validator.New(),
	}
}

// MountRoutes registers group routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/groups", h.list)
	r.Get("/group/{id}", h.show)
	r.With(h.authMW.DiscoverAuth).Get("/group/{id}/members", h.listMembers)

	r.Group(func(r chi.Router) {
		r.Use(h.authMW.RequireAuth, h.authMW.RequireTrustedOrigin, h.authMW.RequireCSRF)
		r.Post("/groups", h.create)
		r.With(h.authzMW.RequireGroupPermissions(rbac.PermGroupUpdate)).Patch("/group/{id}", h.update)
		r.With(h.authzMW.RequireGroupPermissions(rbac.PermGroupDelete)).Delete("/group/{id}", h.remove)
		r.Post("/group/{id}/members", h.join)
		r.Delete("/group/{id}/members/{userId}", h.removeMember)
	})
}

type createRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=128"`
	Description string `json:"description" validate:"max=2000"`
	CoverURL    string `json:"coverUrl" validate:"omitempty,url"`
	IsPrivate   bool   `json:"isPrivate"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ident := shared.IdentityFromContext(r.Context())

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	group, owner, err := h.service.Create(r.Context(), ident.UserID, CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"group": group, "owner": owner})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	group, owner, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"group": group, "owner": owner})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r.URL.Query())
	list, pagination, err := h.service.List(r.Context(), page)
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": list, "pagination": pagination})
}

type updateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=128"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	CoverURL    *string `json:"coverUrl" validate:"omitempty,url"`
	IsPrivate   *bool   `json:"isPrivate"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req updateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.CoverURL != nil {
		updates["cover_url"] = *req.CoverURL
	}
	if req.IsPrivate != nil {
		updates["is_private"] = *req.IsPrivate
	}
	if len(updates) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no fields to update")
		return
	}

	group, err := h.service.Update(r.Context(), id, updates)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

// listMembers lists a group's memberships. The membership roster follows the
// same visibility rule as the group itself: private groups only show it to
// members and bypass holders.
func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ident := shared.IdentityFromContext(r.Context())
	if err := h.guard.CheckGroupView(r.Context(), id, ident); err != nil {
		httpx.RespondError(w, err)
		return
	}

	page := shared.ParsePageRequest(r.URL.Query())
	list, pagination, err := h.service.ListMembers(r.Context(), id, page)
	if err != nil {
		h.logger.Error("list members", slog.Any("error", err), slog.Int64("group_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": list, "pagination": pagination})
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ident := shared.IdentityFromContext(r.Context())
	m, err := h.service.Join(r.Context(), id, ident.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "userId must be numeric")
		return
	}
	ident := shared.IdentityFromContext(r.Context())
	if err := h.service.RemoveMember(r.Context(), ident.UserID, id, targetID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be numeric")
		return 0, false
	}
	return id, true
}
