package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agora-qa/agora/internal/shared"
)

func newTestMiddleware(t *testing.T) (Middleware, *TokenService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bindings := NewRedisBindingStore(client)
	tokens := NewTokenService("test-signing-key", time.Hour, bindings)
	return Middleware{
		Tokens:         tokens,
		Bindings:       bindings,
		TrustedOrigins: []string{"https://app.example.com"},
	}, tokens
}

func identityEcho(t *testing.T, captured **shared.Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = shared.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	mw, tokens := newTestMiddleware(t)
	creds, err := tokens.Issue(context.Background(), 42, "gopher")
	require.NoError(t, err)

	var ident *shared.Identity
	handler := mw.RequireAuth(identityEcho(t, &ident))

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + creds.AccessToken, http.StatusUnauthorized},
		{"no token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + creds.AccessToken, http.StatusOK},
		{"case-insensitive scheme", "bearer " + creds.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ident = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.code, rec.Code)

			if tc.code == http.StatusOK {
				require.NotNil(t, ident)
				require.EqualValues(t, 42, ident.UserID)
				require.Equal(t, "gopher", ident.Username)
				require.Equal(t, creds.CSRFToken, ident.CSRFToken)
			}
		})
	}
}

func TestDiscoverAuth(t *testing.T) {
	mw, tokens := newTestMiddleware(t)
	creds, err := tokens.Issue(context.Background(), 42, "gopher")
	require.NoError(t, err)

	var ident *shared.Identity
	handler := mw.DiscoverAuth(identityEcho(t, &ident))

	// No credentials: the request proceeds anonymously.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, ident)

	// A broken token also proceeds anonymously instead of rejecting.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, ident)

	// A valid token attaches the identity.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ident)
	require.EqualValues(t, 42, ident.UserID)
}

func TestRequireTrustedOrigin(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	handler := mw.RequireTrustedOrigin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name    string
		origin  string
		referer string
		code    int
	}{
		{"trusted origin", "https://app.example.com", "", http.StatusOK},
		{"trusted origin trailing slash", "https://app.example.com/", "", http.StatusOK},
		{"untrusted origin", "https://evil.example.com", "", http.StatusForbidden},
		{"referer fallback", "", "https://app.example.com/groups/7", http.StatusOK},
		{"untrusted referer", "", "https://evil.example.com/attack", http.StatusForbidden},
		{"no origin at all", "", "", http.StatusForbidden},
		{"unparseable referer", "", "://nope", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.referer != "" {
				req.Header.Set("Referer", tc.referer)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestRequireCSRF(t *testing.T) {
	mw, tokens := newTestMiddleware(t)
	ctx := context.Background()

	creds, err := tokens.Issue(ctx, 42, "gopher")
	require.NoError(t, err)
	foreign, err := tokens.Issue(ctx, 99, "intruder")
	require.NoError(t, err)

	handler := mw.RequireCSRF(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(ident *shared.Identity, csrfToken string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if ident != nil {
			req = req.WithContext(shared.ContextWithIdentity(req.Context(), ident))
		}
		if csrfToken != "" {
			req.Header.Set(CSRFHeader, csrfToken)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	caller := &shared.Identity{UserID: 42, Username: "gopher", CSRFToken: creds.CSRFToken}

	// The three canonical failures: no token echoed, a token bound to a
	// different user, and a token that never had a binding.
	require.Equal(t, http.StatusForbidden, serve(caller, ""))
	require.Equal(t, http.StatusForbidden, serve(caller, foreign.CSRFToken))
	require.Equal(t, http.StatusForbidden, serve(caller, "salt.forged"))

	// No authenticated identity at all.
	require.Equal(t, http.StatusForbidden, serve(nil, creds.CSRFToken))

	// The matching binding passes.
	require.Equal(t, http.StatusOK, serve(caller, creds.CSRFToken))

	// Deleting the binding revokes the token immediately.
	require.NoError(t, mw.Bindings.Delete(ctx, 42, creds.CSRFToken))
	require.Equal(t, http.StatusForbidden, serve(caller, creds.CSRFToken))
}

// The full mutation gate chain: auth, then origin, then CSRF.
func TestGateChain(t *testing.T) {
	mw, tokens := newTestMiddleware(t)
	creds, err := tokens.Issue(context.Background(), 42, "gopher")
	require.NoError(t, err)

	handler := mw.RequireAuth(mw.RequireTrustedOrigin(mw.RequireCSRF(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set(CSRFHeader, creds.CSRFToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// A cross-origin request is stopped at the origin gate even with valid
	// credentials.
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set(CSRFHeader, creds.CSRFToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
