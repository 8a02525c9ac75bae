package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound indicates the subject user does not exist. Unlike other
// lookup failures this one is surfaced to callers: resolving permissions for
// an unknown user is a caller bug, not a deniable request.
var ErrUserNotFound = errors.New("rbac: user not found")

// ErrNoMembership indicates the user holds no membership in the group.
var ErrNoMembership = errors.New("rbac: no membership")

// Repository defines the lookups the resolver needs.
type Repository interface {
	// UserRoleName returns the user's account-level role name, or "" when the
	// user has none. Returns ErrUserNotFound for an unknown user id.
	UserRoleName(ctx context.Context, userID int64) (string, error)
	// MembershipRoleName returns the user's role within one group.
	// Returns ErrNoMembership when no membership row exists.
	MembershipRoleName(ctx context.Context, groupID, userID int64) (string, error)
	// RolePermissionNames returns the permission names granted by a role.
	RolePermissionNames(ctx context.Context, roleName string) ([]string, error)
	// ListRoles returns all roles ordered by name.
	ListRoles(ctx context.Context) ([]Role, error)
	// ListPermissions returns all permissions ordered by name.
	ListPermissions(ctx context.Context) ([]Permission, error)
	// ListRolePermissions returns the role/permission join rows for one role.
	ListRolePermissions(ctx context.Context, roleName string) ([]RolePermission, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) UserRoleName(ctx context.Context, userID int64) (string, error) {
	var roleName pgtype.Text
	err := r.pool.QueryRow(ctx, `SELECT role_name FROM users WHERE id = $1`, userID).Scan(&roleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if !roleName.Valid {
		return "", nil
	}
	return roleName.String, nil
}

func (r *PGRepository) MembershipRoleName(ctx context.Context, groupID, userID int64) (string, error) {
	var roleName string
	err := r.pool.QueryRow(ctx,
		`SELECT role_name FROM group_memberships WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	).Scan(&roleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoMembership
		}
		return "", err
	}
	return roleName, nil
}

func (r *PGRepository) RolePermissionNames(ctx context.Context, roleName string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission_name FROM role_permissions WHERE role_name = $1`, roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var createdAt, updatedAt pgtype.Timestamptz
		if err := rows.Scan(&role.Name, &role.Description, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		role.CreatedAt = createdAt.Time
		role.UpdatedAt = updatedAt.Time
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.Name, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func (r *PGRepository) ListRolePermissions(ctx context.Context, roleName string) ([]RolePermission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role_name, permission_name FROM role_permissions WHERE role_name = $1 ORDER BY permission_name`,
		roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []RolePermission
	for rows.Next() {
		var grant RolePermission
		if err := rows.Scan(&grant.RoleName, &grant.PermissionName); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
