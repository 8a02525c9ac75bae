package comments

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/shared"
)

// Service wraps comment business rules.
type Service struct {
	repo  Repository
	guard *authz.Guard
}

// NewService constructs a new Service.
func NewService(repo Repository, guard *authz.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// Create posts a comment under an answer. The membership requirement walks
// answer to question to group before it can be checked.
func (s *Service) Create(ctx context.Context, callerID, answerID int64, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", httpx.ErrValidation)
	}

	groupID, err := s.guard.AnswerGroup(ctx, answerID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.guard.IsMemberOrBypass(ctx, callerID, groupID, rbac.PermGroupBypassMembership)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: commenting requires group membership", httpx.ErrForbidden)
	}

	return s.repo.Create(ctx, Comment{AnswerID: answerID, UserID: callerID, Content: content})
}

// Get returns a comment after the view-access walk to its group.
func (s *Service) Get(ctx context.Context, id int64, ident *shared.Identity) (*Comment, error) {
	if err := s.guard.CheckCommentView(ctx, id, ident); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ListByAnswer returns a page of an answer's comments, subject to the view
// access of the answer itself.
func (s *Service) ListByAnswer(ctx context.Context, answerID int64, ident *shared.Identity, page shared.PageRequest) ([]Comment, shared.Pagination, error) {
	if err := s.guard.CheckAnswerView(ctx, answerID, ident); err != nil {
		return nil, shared.Pagination{}, err
	}
	list, total, err := s.repo.ListByAnswer(ctx, answerID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// UpdateContent replaces the comment body. Ownership is enforced by the route
// gate; the author and answer of a comment never change after creation.
func (s *Service) UpdateContent(ctx context.Context, id int64, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", httpx.ErrValidation)
	}
	return s.repo.UpdateContent(ctx, id, content)
}

// Delete removes a comment. Ownership is enforced by the route gate.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
