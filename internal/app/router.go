package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agora-qa/agora/internal/answers"
	"github.com/agora-qa/agora/internal/auth"
	"github.com/agora-qa/agora/internal/comments"
	"github.com/agora-qa/agora/internal/groups"
	"github.com/agora-qa/agora/internal/observability"
	"github.com/agora-qa/agora/internal/questions"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/users"
	"github.com/agora-qa/agora/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	GroupsHandler    *groups.Handler
	QuestionsHandler *questions.Handler
	AnswersHandler   *answers.Handler
	CommentsHandler  *comments.Handler
	RBACHandler      *rbac.Handler
	JobHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		params.UsersHandler.MountRoutes(r)
		params.GroupsHandler.MountRoutes(r)
		params.QuestionsHandler.MountRoutes(r)
		params.AnswersHandler.MountRoutes(r)
		params.CommentsHandler.MountRoutes(r)
		params.RBACHandler.MountRoutes(r)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
