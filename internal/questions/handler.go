package questions

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

// Handler wires HTTP endpoints for questions.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authMW    auth.Middleware
	authzMW   authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authMW auth.Middleware, authzMW authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		authMW:    authMW,
		authzMW:   authzMW,
		validator: validator.New(),
	}
}

// MountRoutes registers question routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authMW.DiscoverAuth)
		r.Get("/questions", h.list)
		r.Get("/question/{id}", h.show)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMW.RequireAuth, h.authMW.RequireTrustedOrigin, h.authMW.RequireCSRF)
		r.Post("/questions", h.create)
		r.With(h.authzMW.RequireQuestionOwner(rbac.PermQuestionBypassOwnership)).Patch("/question/{id}", h.update)
		r.With(h.authzMW.RequireQuestionOwner(rbac.PermQuestionBypassOwnership)).Delete("/question/{id}", h.remove)
	})
}

type createRequest struct {
	GroupID int64  `json:"groupId" validate:"required,gt=0"`
	Title   string `json:"title" validate:"required,min=3,max=255"`
	Content string `json:"content" validate:"max=10000"`
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

	q, err := h.service.Create(r.Context(), ident.UserID, CreateRequest{
		GroupID: req.GroupID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ident := shared.IdentityFromContext(r.Context())
	q, err := h.service.Get(r.Context(), id, ident)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// list requires a groupId filter: questions are never enumerated across
// groups.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(r.URL.Query().Get("groupId"), 10, 64)
	if err != nil || groupID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "groupId query parameter is required")
		return
	}
	ident := shared.IdentityFromContext(r.Context())

	page := shared.ParsePageRequest(r.URL.Query())
	list, pagination, err := h.service.ListByGroup(r.Context(), groupID, ident, page)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": list, "pagination": pagination})
}

type updateRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=3,max=255"`
	Content *string `json:"content" validate:"omitempty,max=10000"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if len(updates) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no fields to update")
		return
	}

	q, err := h.service.Update(r.Context(), id, updates)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
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

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be numeric")
		return 0, false
	}
	return id, true
}
