package rbac

import (
	"context"
	"errors"
	"log/slog"
)

// Resolver computes the permission sets a user holds, either through the
// account-level role or through a group membership role.
//
// Resolution fails closed: a storage fault during any lookup yields an empty
// set rather than an error, so a backend hiccup can never widen access. The
// single exception is an unknown subject user, which is surfaced as
// ErrUserNotFound because it signals a caller bug rather than a deniable
// request.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// ResolveGlobal returns the permission set granted by the user's account-level
// role. A user without a role resolves to the empty set.
func (r *Resolver) ResolveGlobal(ctx context.Context, userID int64) (PermissionSet, error) {
	roleName, err := r.repo.UserRoleName(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		r.warn("resolve global role", err)
		return PermissionSet{}, nil
	}
	return r.fromRole(ctx, roleName), nil
}

// ResolveGroup returns the permission set granted by the user's role within
// one group. Absence of membership is a normal state and resolves to the
// empty set.
func (r *Resolver) ResolveGroup(ctx context.Context, userID, groupID int64) PermissionSet {
	roleName, err := r.repo.MembershipRoleName(ctx, groupID, userID)
	if err != nil {
		if !errors.Is(err, ErrNoMembership) {
			r.warn("resolve group role", err)
		}
		return PermissionSet{}
	}
	return r.fromRole(ctx, roleName)
}

// HasGlobal reports whether the user's account-level role grants every
// required permission.
func (r *Resolver) HasGlobal(ctx context.Context, userID int64, required ...string) (bool, error) {
	granted, err := r.ResolveGlobal(ctx, userID)
	if err != nil {
		return false, err
	}
	return granted.HasAll(required...), nil
}

// HasGroupOrGlobal reports whether the user holds every required permission
// in the given group OR globally. The OR is deliberate: an account-level
// grant (e.g. an administrator role) satisfies a check without any group
// role assignment.
func (r *Resolver) HasGroupOrGlobal(ctx context.Context, userID, groupID int64, required ...string) (bool, error) {
	if r.ResolveGroup(ctx, userID, groupID).HasAll(required...) {
		return true, nil
	}
	return r.HasGlobal(ctx, userID, required...)
}

// fromRole loads a role's permission grants. Faults resolve to the empty set.
func (r *Resolver) fromRole(ctx context.Context, roleName string) PermissionSet {
	if roleName == "" {
		return PermissionSet{}
	}
	names, err := r.repo.RolePermissionNames(ctx, roleName)
	if err != nil {
		r.warn("resolve role permissions", err)
		return PermissionSet{}
	}
	return NewPermissionSet(names...)
}

func (r *Resolver) warn(msg string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, slog.Any("error", err))
	}
}
