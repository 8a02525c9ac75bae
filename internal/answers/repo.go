package answers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora-qa/agora/internal/platform/httpx"
)

// Repository defines persistence operations for answers.
type Repository interface {
	Get(ctx context.Context, id int64) (*Answer, error)
	ListByQuestion(ctx context.Context, questionID int64, limit, offset int) ([]Answer, int, error)
	Create(ctx context.Context, a Answer) (*Answer, error)
	UpdateContent(ctx context.Context, id int64, content string) (*Answer, error)
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

const answerColumns = `id, question_id, user_id, content, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (*Answer, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE id = $1`, id))
}

func (r *PGRepository) ListByQuestion(ctx context.Context, questionID int64, limit, offset int) ([]Answer, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM answers WHERE question_id = $1`, questionID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+` FROM answers
		 WHERE question_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		questionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *a)
	}
	return list, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, a Answer) (*Answer, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`INSERT INTO answers (question_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING `+answerColumns,
		a.QuestionID, a.UserID, a.Content))
}

func (r *PGRepository) UpdateContent(ctx context.Context, id int64, content string) (*Answer, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`UPDATE answers SET content = $1, updated_at = NOW()
		 WHERE id = $2 RETURNING `+answerColumns,
		content, id))
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM answers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanAnswer(row pgx.Row) (*Answer, error) {
	var a Answer
	err := row.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.Content, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

var _ Repository = (*PGRepository)(nil)
