package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/shared"
)

// Service wraps group and membership business rules.
//
// Two invariants protect group integrity during membership removal and hold
// regardless of the caller's permissions, bypass grants included:
//
//   - owner-retention: a membership whose role is "Group Owner" can never be
//     removed directly; ownership moves through group management, not
//     membership deletion.
//   - last-member: the last remaining membership of a group can never be
//     removed.
type Service struct {
	repo  Repository
	guard *authz.Guard
}

// NewService constructs a new Service.
func NewService(repo Repository, guard *authz.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// CreateRequest carries the fields for group creation.
type CreateRequest struct {
	Name        string
	Description string
	CoverURL    string
	IsPrivate   bool
}

// Create inserts a group and makes the creator its owner in one transaction.
func (s *Service) Create(ctx context.Context, creatorID int64, req CreateRequest) (*Group, *Membership, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	return s.repo.CreateWithOwner(ctx, Group{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CoverURL:    strings.TrimSpace(req.CoverURL),
		IsPrivate:   req.IsPrivate,
	}, creatorID)
}

// Get fetches a group together with its owner membership.
func (s *Service) Get(ctx context.Context, id int64) (*Group, *Membership, error) {
	group, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.repo.OwnerMembership(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return group, owner, nil
}

// List returns a page of groups.
func (s *Service) List(ctx context.Context, page shared.PageRequest) ([]Group, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Update mutates group fields. Authorization happens in the route gate.
func (s *Service) Update(ctx context.Context, id int64, updates map[string]any) (*Group, error) {
	return s.repo.Update(ctx, id, updates)
}

// Delete removes a group. Authorization happens in the route gate.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ListMembers returns a page of a group's memberships.
func (s *Service) ListMembers(ctx context.Context, groupID int64, page shared.PageRequest) ([]Membership, shared.Pagination, error) {
	list, total, err := s.repo.ListMembers(ctx, groupID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Join adds the caller as a plain member. A second membership for the same
// (group, user) pair is rejected.
func (s *Service) Join(ctx context.Context, groupID, userID int64) (*Membership, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}
	m, err := s.repo.AddMember(ctx, groupID, userID, rbac.RoleGroupMember)
	if errors.Is(err, httpx.ErrDuplicate) {
		return nil, fmt.Errorf("%w: user is already a member of this group", httpx.ErrValidation)
	}
	return m, err
}

// RemoveMember deletes the target user's membership in the group. The
// owner-retention and last-member invariants are checked first and are
// absolute; only then does the ownership-or-bypass gate run, so a global
// bypass grant cannot override either invariant.
func (s *Service) RemoveMember(ctx context.Context, callerID, groupID, targetUserID int64) error {
	m, err := s.repo.Membership(ctx, groupID, targetUserID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return fmt.Errorf("%w: user is not a member of this group", httpx.ErrNotFound)
		}
		return err
	}

	if m.RoleName == rbac.RoleGroupOwner {
		return fmt.Errorf("%w: cannot remove the owner of a group", httpx.ErrValidation)
	}

	count, err := s.repo.MemberCount(ctx, groupID)
	if err != nil {
		return err
	}
	if count == 1 {
		return fmt.Errorf("%w: cannot remove the last member of a group", httpx.ErrValidation)
	}

	allowed, err := s.guard.OwnsOrBypass(ctx, m.UserID, callerID, rbac.PermGroupUserBypassOwnership)
	if err != nil {
		return err
	}
	if !allowed {
		return httpx.ErrForbidden
	}

	return s.repo.RemoveMember(ctx, m.ID)
}
