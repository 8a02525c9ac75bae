package comments

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

// Handler wires HTTP endpoints for comments.
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

// MountRoutes registers comment routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authMW.DiscoverAuth)
		r.Get("/comments", h.list)
		r.Get("/comment/{id}", h.show)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMW.RequireAuth, h.authMW.RequireTrustedOrigin, h.authMW.RequireCSRF)
		r.Post("/comments", h.create)
		r.With(h.authzMW.RequireCommentOwner(rbac.PermCommentBypassOwnership)).Patch("/comment/{id}", h.update)
		r.With(h.authzMW.RequireCommentOwner(rbac.PermCommentBypassOwnership)).Delete("/comment/{id}", h.remove)
	})
}

type createRequest struct {
	AnswerID int64  `json:"answerId" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required,max=5000"`
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

	c, err := h.service.Create(r.Context(), ident.UserID, req.AnswerID, req.Content)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ident := shared.IdentityFromContext(r.Context())
	c, err := h.service.Get(r.Context(), id, ident)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// list requires an answerId filter: comments are never enumerated globally.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	answerID, err := strconv.ParseInt(r.URL.Query().Get("answerId"), 10, 64)
	if err != nil || answerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "answerId query parameter is required")
		return
	}
	ident := shared.IdentityFromContext(r.Context())

	page := shared.ParsePageRequest(r.URL.Query())
	list, pagination, err := h.service.ListByAnswer(r.Context(), answerID, ident, page)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": list, "pagination": pagination})
}

type updateRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
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

	c, err := h.service.UpdateContent(r.Context(), id, req.Content)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
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
