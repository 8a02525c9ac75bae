// Package authz implements the membership and ownership gates that sit
// between the authentication/CSRF gates and the resource handlers.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/shared"
)

// Guard answers the per-resource authorization questions. All decisions fail
// closed: a storage fault during a check denies rather than errors wide open.
type Guard struct {
	repo     Repository
	resolver *rbac.Resolver
	logger   *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(repo Repository, resolver *rbac.Resolver, logger *slog.Logger) *Guard {
	return &Guard{repo: repo, resolver: resolver, logger: logger}
}

// IsMember reports whether a membership row exists for (userID, groupID).
func (g *Guard) IsMember(ctx context.Context, userID, groupID int64) (bool, error) {
	_, err := g.repo.Membership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsMemberOrBypass reports membership OR a global grant of every bypass
// permission.
func (g *Guard) IsMemberOrBypass(ctx context.Context, userID, groupID int64, bypass ...string) (bool, error) {
	member, err := g.IsMember(ctx, userID, groupID)
	if err != nil {
		g.warn("membership lookup", err)
		return false, nil
	}
	if member {
		return true, nil
	}
	return g.resolver.HasGlobal(ctx, userID, bypass...)
}

// OwnsOrBypass reports resource ownership OR a global grant of every bypass
// permission.
func (g *Guard) OwnsOrBypass(ctx context.Context, ownerID, callerID int64, bypass ...string) (bool, error) {
	if ownerID == callerID {
		return true, nil
	}
	if len(bypass) == 0 {
		return false, nil
	}
	return g.resolver.HasGlobal(ctx, callerID, bypass...)
}

// CheckGroupView enforces group privacy for read paths. Public groups need no
// check. Private groups reject anonymous callers with Unauthorized and
// non-members without the membership bypass with Forbidden.
func (g *Guard) CheckGroupView(ctx context.Context, groupID int64, ident *shared.Identity) error {
	isPrivate, err := g.repo.GroupIsPrivate(ctx, groupID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return fmt.Errorf("%w: group not found", httpx.ErrNotFound)
		}
		g.warn("group privacy lookup", err)
		return httpx.ErrForbidden
	}
	if !isPrivate {
		return nil
	}
	if ident == nil {
		return httpx.ErrUnauthorized
	}
	ok, err := g.IsMemberOrBypass(ctx, ident.UserID, groupID, rbac.PermGroupBypassMembership)
	if err != nil {
		return err
	}
	if !ok {
		return httpx.ErrForbidden
	}
	return nil
}

// QuestionGroup resolves a question's group id.
func (g *Guard) QuestionGroup(ctx context.Context, questionID int64) (int64, error) {
	_, groupID, err := g.repo.QuestionRef(ctx, questionID)
	if err != nil {
		return 0, questionNotFound(err)
	}
	return groupID, nil
}

// AnswerGroup walks answer -> question -> group.
func (g *Guard) AnswerGroup(ctx context.Context, answerID int64) (int64, error) {
	_, questionID, err := g.repo.AnswerRef(ctx, answerID)
	if err != nil {
		return 0, answerNotFound(err)
	}
	return g.QuestionGroup(ctx, questionID)
}

// CommentGroup walks comment -> answer -> question -> group. There is exactly
// one ancestor chain per resource, so the walk terminates structurally.
func (g *Guard) CommentGroup(ctx context.Context, commentID int64) (int64, error) {
	_, answerID, err := g.repo.CommentRef(ctx, commentID)
	if err != nil {
		return 0, commentNotFound(err)
	}
	return g.AnswerGroup(ctx, answerID)
}

// CheckQuestionView applies the view-access walk for one question.
func (g *Guard) CheckQuestionView(ctx context.Context, questionID int64, ident *shared.Identity) error {
	groupID, err := g.QuestionGroup(ctx, questionID)
	if err != nil {
		return err
	}
	return g.CheckGroupView(ctx, groupID, ident)
}

// CheckAnswerView applies the view-access walk for one answer.
func (g *Guard) CheckAnswerView(ctx context.Context, answerID int64, ident *shared.Identity) error {
	groupID, err := g.AnswerGroup(ctx, answerID)
	if err != nil {
		return err
	}
	return g.CheckGroupView(ctx, groupID, ident)
}

// CheckCommentView applies the view-access walk for one comment.
func (g *Guard) CheckCommentView(ctx context.Context, commentID int64, ident *shared.Identity) error {
	groupID, err := g.CommentGroup(ctx, commentID)
	if err != nil {
		return err
	}
	return g.CheckGroupView(ctx, groupID, ident)
}

func (g *Guard) warn(msg string, err error) {
	if g.logger != nil {
		g.logger.Warn(msg, slog.Any("error", err))
	}
}

func questionNotFound(err error) error {
	if errors.Is(err, httpx.ErrNotFound) {
		return fmt.Errorf("%w: question not found", httpx.ErrNotFound)
	}
	return err
}

func answerNotFound(err error) error {
	if errors.Is(err, httpx.ErrNotFound) {
		return fmt.Errorf("%w: answer not found", httpx.ErrNotFound)
	}
	return err
}

func commentNotFound(err error) error {
	if errors.Is(err, httpx.ErrNotFound) {
		return fmt.Errorf("%w: comment not found", httpx.ErrNotFound)
	}
	return err
}
