package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agora-qa/agora/internal/observability"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/shared"
)

// Middleware exposes the gates as chi middleware. Every constructor expects
// to run after the authentication gate: the identity must already be in the
// request context.
type Middleware struct {
	Guard   *Guard
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RequireQuestionOwner gates mutation of a question behind ownership or the
// given global bypass permissions.
func (m Middleware) RequireQuestionOwner(bypass ...string) func(http.Handler) http.Handler {
	return m.requireOwner("question", bypass, func(ctx context.Context, id int64) (int64, error) {
		ownerID, _, err := m.Guard.repo.QuestionRef(ctx, id)
		return ownerID, questionNotFound(err)
	})
}

// RequireAnswerOwner gates mutation of an answer.
func (m Middleware) RequireAnswerOwner(bypass ...string) func(http.Handler) http.Handler {
	return m.requireOwner("answer", bypass, func(ctx context.Context, id int64) (int64, error) {
		ownerID, _, err := m.Guard.repo.AnswerRef(ctx, id)
		return ownerID, answerNotFound(err)
	})
}

// RequireCommentOwner gates mutation of a comment.
func (m Middleware) RequireCommentOwner(bypass ...string) func(http.Handler) http.Handler {
	return m.requireOwner("comment", bypass, func(ctx context.Context, id int64) (int64, error) {
		ownerID, _, err := m.Guard.repo.CommentRef(ctx, id)
		return ownerID, commentNotFound(err)
	})
}

// RequireGroupPermissions gates a group mutation behind the required
// permissions, granted either through the caller's group role or globally.
// With no permissions listed it degrades to a plain membership requirement.
func (m Middleware) RequireGroupPermissions(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, groupID, ok := m.subjectAndID(w, r)
			if !ok {
				return
			}
			var allowed bool
			var err error
			if len(required) == 0 {
				allowed, err = m.Guard.IsMember(r.Context(), ident.UserID, groupID)
			} else {
				allowed, err = m.Guard.resolver.HasGroupOrGlobal(r.Context(), ident.UserID, groupID, required...)
			}
			if err != nil {
				m.fail(w, "group permissions", err)
				return
			}
			if !allowed {
				m.forbid(w, "group")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) requireOwner(gate string, bypass []string, refFn func(context.Context, int64) (int64, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, id, ok := m.subjectAndID(w, r)
			if !ok {
				return
			}
			ownerID, err := refFn(r.Context(), id)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			allowed, err := m.Guard.OwnsOrBypass(r.Context(), ownerID, ident.UserID, bypass...)
			if err != nil {
				m.fail(w, gate+" ownership", err)
				return
			}
			if !allowed {
				m.forbid(w, gate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// subjectAndID pulls the authenticated identity and the numeric {id} route
// parameter, writing the error response itself when either is missing.
func (m Middleware) subjectAndID(w http.ResponseWriter, r *http.Request) (*shared.Identity, int64, bool) {
	ident := shared.IdentityFromContext(r.Context())
	if ident == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return nil, 0, false
	}
	raw := chi.URLParam(r, "id")
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id is required")
		return nil, 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be numeric")
		return nil, 0, false
	}
	return ident, id, true
}

func (m Middleware) forbid(w http.ResponseWriter, gate string) {
	m.Metrics.GateDenial(gate)
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
}

func (m Middleware) fail(w http.ResponseWriter, msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
