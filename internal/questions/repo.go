package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora-qa/agora/internal/platform/httpx"
)

// Repository defines persistence operations for questions.
type Repository interface {
	Get(ctx context.Context, id int64) (*Question, error)
	ListByGroup(ctx context.Context, groupID int64, limit, offset int) ([]Question, int, error)
	Create(ctx context.Context, q Question) (*Question, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*Question, error)
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

const questionColumns = `id, group_id, user_id, title, content, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (*Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
}

func (r *PGRepository) ListByGroup(ctx context.Context, groupID int64, limit, offset int) ([]Question, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE group_id = $1`, groupID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE group_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *q)
	}
	return list, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, q Question) (*Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`INSERT INTO questions (group_id, user_id, title, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+questionColumns,
		q.GroupID, q.UserID, q.Title, q.Content))
}

func (r *PGRepository) Update(ctx context.Context, id int64, updates map[string]any) (*Question, error) {
	query := `UPDATE questions SET updated_at = NOW()`
	var args []any
	argPos := 1

	for _, column := range []string{"title", "content"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING ", argPos) + questionColumns
	args = append(args, id)

	return scanQuestion(r.pool.QueryRow(ctx, query, args...))
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.GroupID, &q.UserID, &q.Title, &q.Content, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

var _ Repository = (*PGRepository)(nil)
