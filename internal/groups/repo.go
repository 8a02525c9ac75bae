package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora-qa/agora/internal/platform/db"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
)

// Repository defines persistence operations for groups and memberships.
type Repository interface {
	Get(ctx context.Context, id int64) (*Group, error)
	List(ctx context.Context, limit, offset int) ([]Group, int, error)
	// CreateWithOwner inserts the group and its owner membership atomically.
	CreateWithOwner(ctx context.Context, group Group, ownerID int64) (*Group, *Membership, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*Group, error)
	Delete(ctx context.Context, id int64) error

	Membership(ctx context.Context, groupID, userID int64) (*Membership, error)
	ListMembers(ctx context.Context, groupID int64, limit, offset int) ([]Membership, int, error)
	MemberCount(ctx context.Context, groupID int64) (int, error)
	OwnerMembership(ctx context.Context, groupID int64) (*Membership, error)
	AddMember(ctx context.Context, groupID, userID int64, roleName string) (*Membership, error)
	RemoveMember(ctx context.Context, membershipID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const groupColumns = `id, name, description, cover_url, is_private, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (*Group, error) {
	return scanGroup(r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id))
}

func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Group, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM groups`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM groups ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *group)
	}
	return list, total, rows.Err()
}

func (r *PGRepository) CreateWithOwner(ctx context.Context, group Group, ownerID int64) (*Group, *Membership, error) {
	var created *Group
	var owner *Membership
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = scanGroup(tx.QueryRow(ctx,
			`INSERT INTO groups (name, description, cover_url, is_private)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+groupColumns,
			group.Name, group.Description, group.CoverURL, group.IsPrivate))
		if err != nil {
			return err
		}
		owner = &Membership{GroupID: created.ID, UserID: ownerID, RoleName: rbac.RoleGroupOwner}
		var createdAt pgtype.Timestamptz
		err = tx.QueryRow(ctx,
			`INSERT INTO group_memberships (group_id, user_id, role_name)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			created.ID, ownerID, rbac.RoleGroupOwner).Scan(&owner.ID, &createdAt)
		if err != nil {
			return err
		}
		owner.CreatedAt = createdAt.Time
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, owner, nil
}

func (r *PGRepository) Update(ctx context.Context, id int64, updates map[string]any) (*Group, error) {
	query := `UPDATE groups SET updated_at = NOW()`
	var args []any
	argPos := 1

	for _, column := range []string{"name", "description", "cover_url", "is_private"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING ", argPos) + groupColumns
	args = append(args, id)
	return scanGroup(r.pool.QueryRow(ctx, query, args...))
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

const membershipColumns = `m.id, m.group_id, m.user_id, m.role_name, m.created_at, u.id, u.username`

func (r *PGRepository) Membership(ctx context.Context, groupID, userID int64) (*Membership, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+membershipColumns+`
		 FROM group_memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = $1 AND m.user_id = $2`, groupID, userID)
	return scanMembership(row)
}

func (r *PGRepository) ListMembers(ctx context.Context, groupID int64, limit, offset int) ([]Membership, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = $1`, groupID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+membershipColumns+`
		 FROM group_memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = $1 ORDER BY m.id LIMIT $2 OFFSET $3`, groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *m)
	}
	return list, total, rows.Err()
}

func (r *PGRepository) MemberCount(ctx context.Context, groupID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = $1`, groupID).Scan(&count)
	return count, err
}

func (r *PGRepository) OwnerMembership(ctx context.Context, groupID int64) (*Membership, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+membershipColumns+`
		 FROM group_memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = $1 AND m.role_name = $2`, groupID, rbac.RoleGroupOwner)
	return scanMembership(row)
}

func (r *PGRepository) AddMember(ctx context.Context, groupID, userID int64, roleName string) (*Membership, error) {
	m := &Membership{GroupID: groupID, UserID: userID, RoleName: roleName}
	var createdAt pgtype.Timestamptz
	err := r.pool.QueryRow(ctx,
		`INSERT INTO group_memberships (group_id, user_id, role_name)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`, groupID, userID, roleName).Scan(&m.ID, &createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: membership already exists", httpx.ErrDuplicate)
		}
		return nil, err
	}
	m.CreatedAt = createdAt.Time
	return m, nil
}

func (r *PGRepository) RemoveMember(ctx context.Context, membershipID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM group_memberships WHERE id = $1`, membershipID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanGroup(row pgx.Row) (*Group, error) {
	var group Group
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&group.ID, &group.Name, &group.Description, &group.CoverURL,
		&group.IsPrivate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	group.CreatedAt = createdAt.Time
	group.UpdatedAt = updatedAt.Time
	return &group, nil
}

func scanMembership(row pgx.Row) (*Membership, error) {
	var m Membership
	var createdAt pgtype.Timestamptz
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.RoleName, &createdAt, &m.User.ID, &m.User.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	m.CreatedAt = createdAt.Time
	return &m, nil
}

var _ Repository = (*PGRepository)(nil)
