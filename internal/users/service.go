package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/shared"
)

// Service wraps user account business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterRequest carries the fields for account creation.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// UpdateRequest carries the mutable account fields. Password changes require
// the current password.
type UpdateRequest struct {
	Username        *string
	Email           *string
	Password        *string
	CurrentPassword string
}

// Register creates a new account. Usernames are NFC-normalised and emails
// lowercased so lookups behave the same regardless of how the client encoded
// the input.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	username := norm.NFC.String(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", httpx.ErrValidation)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already in use", httpx.ErrDuplicate)
	} else if !errors.Is(err, httpx.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, username, email, string(hash))
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of accounts.
func (s *Service) List(ctx context.Context, page shared.PageRequest) ([]User, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Update mutates the caller's own account. Changing the password requires the
// current one to be supplied and correct.
func (s *Service) Update(ctx context.Context, callerID, id int64, req UpdateRequest) (*User, error) {
	if callerID != id {
		return nil, httpx.ErrForbidden
	}

	updates := make(map[string]any)
	if req.Username != nil {
		username := norm.NFC.String(strings.TrimSpace(*req.Username))
		if username == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", httpx.ErrValidation)
		}
		updates["username"] = username
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Password != nil {
		user, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return nil, fmt.Errorf("%w: current password is incorrect", httpx.ErrForbidden)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = string(hash)
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	return s.repo.Update(ctx, id, updates)
}

// Delete removes the caller's own account.
func (s *Service) Delete(ctx context.Context, callerID, id int64) error {
	if callerID != id {
		return httpx.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
