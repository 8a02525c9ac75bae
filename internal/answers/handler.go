package answers

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

// Handler wires HTTP endpoints for answers.
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

// MountRoutes registers answer routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authMW.DiscoverAuth)
		r.Get("/answers", h.list)
		r.Get("/answer/{id}", h.show)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMW.RequireAuth, h.authMW.RequireTrustedOrigin, h.authMW.RequireCSRF)
		r.Post("/answers", h.create)
		r.With(h.authzMW.RequireAnswerOwner(rbac.PermAnswerBypassOwnership)).Patch("/answer/{id}", h.update)
		r.With(h.authzMW.RequireAnswerOwner(rbac.PermAnswerBypassOwnership)).Delete("/answer/{id}", h.remove)
	})
}

type createRequest struct {
	QuestionID int64  `json:"questionId" validate:"required,gt=0"`
	Content    string `json:"content" validate:"required,max=10000"`
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

	a, err := h.service.Create(r.Context(), ident.UserID, req.QuestionID, req.Content)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ident := shared.IdentityFromContext(r.Context())
	a, err := h.service.Get(r.Context(), id, ident)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

// list requires a questionId filter: answers are never enumerated globally.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(r.URL.Query().Get("questionId"), 10, 64)
	if err != nil || questionID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "questionId query parameter is required")
		return
	}
	ident := shared.IdentityFromContext(r.Context())

	page := shared.ParsePageRequest(r.URL.Query())
	list, pagination, err := h.service.ListByQuestion(r.Context(), questionID, ident, page)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": list, "pagination": pagination})
}

type updateRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
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

	a, err := h.service.UpdateContent(r.Context(), id, req.Content)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
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
