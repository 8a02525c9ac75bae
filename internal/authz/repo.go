package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora-qa/agora/internal/platform/httpx"
)

// Membership is one group membership row as the gates see it.
type Membership struct {
	ID       int64
	GroupID  int64
	UserID   int64
	RoleName string
}

// Repository provides the narrow lookups the gates need. The gates never
// write; all mutation happens in the resource packages.
type Repository interface {
	// GroupIsPrivate reports the privacy flag of a group.
	GroupIsPrivate(ctx context.Context, groupID int64) (bool, error)
	// Membership returns the membership row for (groupID, userID), or
	// httpx.ErrNotFound when none exists.
	Membership(ctx context.Context, groupID, userID int64) (*Membership, error)
	// QuestionRef returns a question's owner and group.
	QuestionRef(ctx context.Context, questionID int64) (ownerID, groupID int64, err error)
	// AnswerRef returns an answer's owner and parent question.
	AnswerRef(ctx context.Context, answerID int64) (ownerID, questionID int64, err error)
	// CommentRef returns a comment's owner and parent answer.
	CommentRef(ctx context.Context, commentID int64) (ownerID, answerID int64, err error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GroupIsPrivate(ctx context.Context, groupID int64) (bool, error) {
	var isPrivate bool
	err := r.pool.QueryRow(ctx, `SELECT is_private FROM groups WHERE id = $1`, groupID).Scan(&isPrivate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, httpx.ErrNotFound
		}
		return false, err
	}
	return isPrivate, nil
}

func (r *PGRepository) Membership(ctx context.Context, groupID, userID int64) (*Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx,
		`SELECT id, group_id, user_id, role_name FROM group_memberships
		 WHERE group_id = $1 AND user_id = $2`, groupID, userID,
	).Scan(&m.ID, &m.GroupID, &m.UserID, &m.RoleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *PGRepository) QuestionRef(ctx context.Context, questionID int64) (int64, int64, error) {
	var ownerID, groupID int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, group_id FROM questions WHERE id = $1`, questionID).Scan(&ownerID, &groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, httpx.ErrNotFound
		}
		return 0, 0, err
	}
	return ownerID, groupID, nil
}

func (r *PGRepository) AnswerRef(ctx context.Context, answerID int64) (int64, int64, error) {
	var ownerID, questionID int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, question_id FROM answers WHERE id = $1`, answerID).Scan(&ownerID, &questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, httpx.ErrNotFound
		}
		return 0, 0, err
	}
	return ownerID, questionID, nil
}

func (r *PGRepository) CommentRef(ctx context.Context, commentID int64) (int64, int64, error) {
	var ownerID, answerID int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, answer_id FROM comments WHERE id = $1`, commentID).Scan(&ownerID, &answerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, httpx.ErrNotFound
		}
		return 0, 0, err
	}
	return ownerID, answerID, nil
}

var _ Repository = (*PGRepository)(nil)
