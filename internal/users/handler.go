package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agora-qa/agora/internal/auth"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/shared"
	"github.com/agora-qa/agora/jobs"
)

// Handler wires HTTP endpoints for user accounts.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	authService  *auth.Service
	authMW       auth.Middleware
	jobs         *jobs.Client
	validator    *validator.Validate
	secureCookie bool
}

// NewHandler constructs a Handler instance. The jobs client may be nil; the
// welcome email is then skipped.
func NewHandler(logger *slog.Logger, service *Service, authService *auth.Service, authMW auth.Middleware, jobsClient *jobs.Client, secureCookie bool) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		authService:  authService,
		authMW:       authMW,
		jobs:         jobsClient,
		validator:    validator.New(),
		secureCookie: secureCookie,
	}
}

// MountRoutes registers user routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/users", h.register)
	r.Get("/users", h.list)
	r.Get("/user/{id}", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.authMW.RequireAuth, h.authMW.RequireTrustedOrigin, h.authMW.RequireCSRF)
		r.Patch("/user/{id}", h.update)
		r.Delete("/user/{id}", h.remove)
	})
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// register creates an account and performs the automatic first login: the
// response carries the bearer token and sets the CSRF cookie, exactly like a
// login.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	creds, err := h.authService.Establish(r.Context(), user.ID, user.Username, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.logger.Error("establish session after register", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if h.jobs != nil {
		_, err := h.jobs.EnqueueWelcomeEmail(r.Context(), jobs.WelcomeEmailPayload{
			Email:    user.Email,
			Username: user.Username,
		})
		if err != nil {
			h.logger.Warn("enqueue welcome email", slog.Any("error", err))
		}
	}

	auth.WriteCSRFCookie(w, creds.CSRFToken, h.secureCookie)
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"accessToken": creds.AccessToken,
		"user":        user,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r.URL.Query())
	list, pagination, err := h.service.List(r.Context(), page)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	public := make([]PublicUser, 0, len(list))
	for i := range list {
		public = append(public, list[i].Public())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": public, "pagination": pagination})
}

type updateRequest struct {
	Username        *string `json:"username" validate:"omitempty,min=3,max=64"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Password        *string `json:"password" validate:"omitempty,min=8"`
	CurrentPassword string  `json:"currentPassword"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ident := shared.IdentityFromContext(r.Context())

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Update(r.Context(), ident.UserID, id, UpdateRequest{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ident := shared.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), ident.UserID, id); err != nil {
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
