package answers

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/shared"
)

// Service wraps answer business rules.
type Service struct {
	repo  Repository
	guard *authz.Guard
}

// NewService constructs a new Service.
func NewService(repo Repository, guard *authz.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// Create posts an answer to a question. The caller must be a member of the
// group the question lives in, or hold the membership bypass permission.
func (s *Service) Create(ctx context.Context, callerID, questionID int64, content string) (*Answer, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", httpx.ErrValidation)
	}

	groupID, err := s.guard.QuestionGroup(ctx, questionID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.guard.IsMemberOrBypass(ctx, callerID, groupID, rbac.PermGroupBypassMembership)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: answering requires group membership", httpx.ErrForbidden)
	}

	return s.repo.Create(ctx, Answer{QuestionID: questionID, UserID: callerID, Content: content})
}

// Get returns an answer after the view-access walk to its group.
func (s *Service) Get(ctx context.Context, id int64, ident *shared.Identity) (*Answer, error) {
	if err := s.guard.CheckAnswerView(ctx, id, ident); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ListByQuestion returns a page of a question's answers, subject to the view
// access of the question itself.
func (s *Service) ListByQuestion(ctx context.Context, questionID int64, ident *shared.Identity, page shared.PageRequest) ([]Answer, shared.Pagination, error) {
	if err := s.guard.CheckQuestionView(ctx, questionID, ident); err != nil {
		return nil, shared.Pagination{}, err
	}
	list, total, err := s.repo.ListByQuestion(ctx, questionID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// UpdateContent replaces the answer body. Ownership is enforced by the route
// gate; the author and question of an answer never change after creation.
func (s *Service) UpdateContent(ctx context.Context, id int64, content string) (*Answer, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", httpx.ErrValidation)
	}
	return s.repo.UpdateContent(ctx, id, content)
}

// Delete removes an answer. Ownership is enforced by the route gate.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
