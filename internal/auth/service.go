package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agora-qa/agora/internal/platform/httpx"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenService
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenService, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Login validates email/password credentials and establishes a session.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*Credentials, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", httpx.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", httpx.ErrValidation)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized)
	}

	return s.Establish(ctx, user.ID, user.Username, ip, ua)
}

// Establish issues credentials for an already-verified user and records the
// login in the session audit table. Registration uses this for its automatic
// first login.
func (s *Service) Establish(ctx context.Context, userID int64, username, ip, ua string) (*Credentials, error) {
	creds, err := s.tokens.Issue(ctx, userID, username)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.tokens.TTL())
	if err := s.repo.CreateSession(ctx, uuid.NewString(), userID, expiresAt, ip, ua); err != nil {
		// Audit only; the login itself stands.
		if s.logger != nil {
			s.logger.Warn("record login session", slog.Any("error", err))
		}
	}

	return creds, nil
}

// PurgeExpiredSessions deletes expired audit rows. Run from the worker cron.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, time.Now())
}
