package questions

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/shared"
)

// Service wraps question business rules.
type Service struct {
	repo  Repository
	guard *authz.Guard
}

// NewService constructs a new Service.
func NewService(repo Repository, guard *authz.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// CreateRequest carries the fields for posting a question. The author comes
// from the authenticated identity, never from the payload.
type CreateRequest struct {
	GroupID int64
	Title   string
	Content string
}

// Create posts a question into a group. The caller must be a member of the
// group, or hold the membership bypass permission.
func (s *Service) Create(ctx context.Context, callerID int64, req CreateRequest) (*Question, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", httpx.ErrValidation)
	}

	allowed, err := s.guard.IsMemberOrBypass(ctx, callerID, req.GroupID, rbac.PermGroupBypassMembership)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: posting requires group membership", httpx.ErrForbidden)
	}

	return s.repo.Create(ctx, Question{
		GroupID: req.GroupID,
		UserID:  callerID,
		Title:   title,
		Content: req.Content,
	})
}

// Get returns a question after the view-access walk to its group.
func (s *Service) Get(ctx context.Context, id int64, ident *shared.Identity) (*Question, error) {
	if err := s.guard.CheckQuestionView(ctx, id, ident); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ListByGroup returns a page of a group's questions, subject to the group's
// visibility.
func (s *Service) ListByGroup(ctx context.Context, groupID int64, ident *shared.Identity, page shared.PageRequest) ([]Question, shared.Pagination, error) {
	if err := s.guard.CheckGroupView(ctx, groupID, ident); err != nil {
		return nil, shared.Pagination{}, err
	}
	list, total, err := s.repo.ListByGroup(ctx, groupID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Update mutates question fields. Ownership is enforced by the route gate;
// the author and group of a question never change after creation.
func (s *Service) Update(ctx context.Context, id int64, updates map[string]any) (*Question, error) {
	return s.repo.Update(ctx, id, updates)
}

// Delete removes a question. Ownership is enforced by the route gate.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
