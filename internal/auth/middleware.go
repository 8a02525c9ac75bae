package auth

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/agora-qa/agora/internal/observability"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/shared"
)

// CSRFHeader is the request header the client echoes the CSRF token in.
const CSRFHeader = "X-CSRF-Token"

// CSRFCookieName is the cookie the CSRF token is delivered in at login.
const CSRFCookieName = "csrfToken"

// Middleware wires the authentication and CSRF gates for HTTP routes.
//
// Mutating routes compose, in order: RequireAuth, RequireTrustedOrigin,
// RequireCSRF, then any resource gate. Privacy-sensitive read routes use
// DiscoverAuth instead of RequireAuth and check view access in the handler.
type Middleware struct {
	Tokens         *TokenService
	Bindings       BindingStore
	TrustedOrigins []string
	Logger         *slog.Logger
	Metrics        *observability.Metrics
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// verified identity to the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := m.identityFromRequest(r)
		if err != nil {
			m.Metrics.GateDenial("auth")
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), ident)))
	})
}

// DiscoverAuth attaches an identity when a valid bearer token is present and
// proceeds anonymously otherwise. It never rejects: the route itself decides
// what an anonymous caller may see.
func (m Middleware) DiscoverAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := m.identityFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), ident)))
	})
}

// RequireTrustedOrigin rejects requests whose Origin (or, failing that,
// Referer) does not match the configured allow-list. It runs before the CSRF
// token check: a cross-origin form post is rejected without any store I/O.
func (m Middleware) RequireTrustedOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := requestOrigin(r)
		if origin == "" || !m.originAllowed(origin) {
			m.Metrics.GateDenial("origin")
			if m.Logger != nil {
				m.Logger.Warn("untrusted origin", slog.String("origin", origin), slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "untrusted origin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF validates the echoed CSRF token against the session binding
// created at login. Must run after RequireAuth: the binding lookup is keyed
// by the authenticated subject.
func (m Middleware) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := shared.IdentityFromContext(r.Context())
		if ident == nil {
			m.deny(w, r, "csrf token required")
			return
		}
		token := r.Header.Get(CSRFHeader)
		if token == "" {
			m.deny(w, r, "csrf token required")
			return
		}
		secret, err := m.Bindings.Get(r.Context(), ident.UserID, token)
		if err != nil {
			// Unknown binding and store fault deny alike: the check fails closed.
			if m.Logger != nil && err != ErrBindingNotFound {
				m.Logger.Warn("csrf binding lookup", slog.Any("error", err))
			}
			m.deny(w, r, "csrf verification failed")
			return
		}
		if !VerifyCSRFToken(secret, token) {
			m.deny(w, r, "csrf verification failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, detail string) {
	m.Metrics.GateDenial("csrf")
	if m.Logger != nil {
		m.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, http.StatusForbidden, "Forbidden", detail)
}

func (m Middleware) identityFromRequest(r *http.Request) (*shared.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, httpx.ErrUnauthorized
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, httpx.ErrUnauthorized
	}
	claims, err := m.Tokens.Verify(token)
	if err != nil {
		return nil, httpx.ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, httpx.ErrInvalidToken
	}
	return &shared.Identity{
		UserID:    userID,
		Username:  claims.Username,
		CSRFToken: claims.CSRFToken,
	}, nil
}

func (m Middleware) originAllowed(origin string) bool {
	for _, allowed := range m.TrustedOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// requestOrigin extracts the caller origin from the Origin header, falling
// back to the Referer's scheme://host.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
