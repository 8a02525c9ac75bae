package comments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora-qa/agora/internal/platform/httpx"
)

// Repository defines persistence operations for comments.
type Repository interface {
	Get(ctx context.Context, id int64) (*Comment, error)
	ListByAnswer(ctx context.Context, answerID int64, limit, offset int) ([]Comment, int, error)
	Create(ctx context.Context, c Comment) (*Comment, error)
	UpdateContent(ctx context.Context, id int64, content string) (*Comment, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const commentColumns = `id, answer_id, user_id, content, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (*Comment, error) {
	return scanComment(r.pool.QueryRow(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
}

func (r *PGRepository) ListByAnswer(ctx context.Context, answerID int64, limit, offset int) ([]Comment, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE answer_id = $1`, answerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM comments
		 WHERE answer_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		answerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *c)
	}
	return list, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, c Comment) (*Comment, error) {
	return scanComment(r.pool.QueryRow(ctx,
		`INSERT INTO comments (answer_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING `+commentColumns,
		c.AnswerID, c.UserID, c.Content))
}

func (r *PGRepository) UpdateContent(ctx context.Context, id int64, content string) (*Comment, error) {
	return scanComment(r.pool.QueryRow(ctx,
		`UPDATE comments SET content = $1, updated_at = NOW()
		 WHERE id = $2 RETURNING `+commentColumns,
		content, id))
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.AnswerID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

var _ Repository = (*PGRepository)(nil)
