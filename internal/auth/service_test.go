package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agora-qa/agora/internal/platform/httpx"
)

type mockRepository struct {
	users    map[string]*User
	sessions []string

	sessionErr error
	purged     int64
}

func (m *mockRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return user, nil
}

func (m *mockRepository) CreateSession(_ context.Context, id string, _ int64, _ time.Time, _, _ string) error {
	if m.sessionErr != nil {
		return m.sessionErr
	}
	m.sessions = append(m.sessions, id)
	return nil
}

func (m *mockRepository) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return m.purged, nil
}

var _ Repository = (*mockRepository)(nil)

func newServiceFixture(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockRepository{users: map[string]*User{
		"gopher@example.com": {ID: 42, Username: "gopher", Email: "gopher@example.com", PasswordHash: string(hash)},
	}}
	tokens := NewTokenService("test-signing-key", time.Hour, NewRedisBindingStore(client))
	return NewService(repo, tokens, slog.Default()), repo
}

func TestLogin(t *testing.T) {
	svc, repo := newServiceFixture(t)

	creds, err := svc.Login(context.Background(), "gopher@example.com", "correct horse", "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, creds.AccessToken)
	require.NotEmpty(t, creds.CSRFToken)
	require.Len(t, repo.sessions, 1)
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "", "correct horse", "", "")
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Login(ctx, "gopher@example.com", "", "", "")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

// Unknown email and wrong password produce the same error so callers cannot
// probe which accounts exist.
func TestLoginBadCredentials(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	_, unknownErr := svc.Login(ctx, "nobody@example.com", "correct horse", "", "")
	require.ErrorIs(t, unknownErr, httpx.ErrUnauthorized)

	_, wrongErr := svc.Login(ctx, "gopher@example.com", "wrong", "", "")
	require.ErrorIs(t, wrongErr, httpx.ErrUnauthorized)

	require.Equal(t, unknownErr.Error(), wrongErr.Error())
}

// A failed audit write does not break the login.
func TestEstablishSurvivesAuditFailure(t *testing.T) {
	svc, repo := newServiceFixture(t)
	repo.sessionErr = errors.New("connection reset")

	creds, err := svc.Establish(context.Background(), 42, "gopher", "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, creds.AccessToken)
}
