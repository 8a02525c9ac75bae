package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	userRoles       map[int64]string
	memberships     map[[2]int64]string // (groupID, userID) -> role name
	rolePermissions map[string][]string

	userRoleErr        error
	membershipErr      error
	rolePermissionsErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		userRoles:       make(map[int64]string),
		memberships:     make(map[[2]int64]string),
		rolePermissions: make(map[string][]string),
	}
}

func (m *mockRepository) UserRoleName(ctx context.Context, userID int64) (string, error) {
	if m.userRoleErr != nil {
		return "", m.userRoleErr
	}
	role, ok := m.userRoles[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return role, nil
}

func (m *mockRepository) MembershipRoleName(ctx context.Context, groupID, userID int64) (string, error) {
	if m.membershipErr != nil {
		return "", m.membershipErr
	}
	role, ok := m.memberships[[2]int64{groupID, userID}]
	if !ok {
		return "", ErrNoMembership
	}
	return role, nil
}

func (m *mockRepository) RolePermissionNames(ctx context.Context, roleName string) ([]string, error) {
	if m.rolePermissionsErr != nil {
		return nil, m.rolePermissionsErr
	}
	return m.rolePermissions[roleName], nil
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) { return nil, nil }

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return nil, nil
}

func (m *mockRepository) ListRolePermissions(ctx context.Context, roleName string) ([]RolePermission, error) {
	return nil, nil
}

func TestPermissionSetHasAll(t *testing.T) {
	set := NewPermissionSet(PermGroupUpdate, PermGroupDelete)

	assert.True(t, set.HasAll(PermGroupUpdate))
	assert.True(t, set.HasAll(PermGroupUpdate, PermGroupDelete))
	assert.False(t, set.HasAll(PermGroupUpdate, PermGroupBypassMembership))

	// An empty required list is vacuously true, even for the empty set.
	assert.True(t, set.HasAll())
	assert.True(t, PermissionSet{}.HasAll())
	assert.False(t, PermissionSet{}.HasAll(PermGroupUpdate))
}

func TestResolveGlobal(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = RoleAdministrator
	repo.userRoles[2] = "" // user exists, no elevated role
	repo.rolePermissions[RoleAdministrator] = []string{PermGroupBypassMembership, PermQuestionBypassOwnership}
	resolver := NewResolver(repo, nil)

	granted, err := resolver.ResolveGlobal(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, granted.HasAll(PermGroupBypassMembership, PermQuestionBypassOwnership))
	assert.False(t, granted.Has(PermGroupDelete))

	empty, err := resolver.ResolveGlobal(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, empty.Names())
}

func TestResolveGlobalUnknownUser(t *testing.T) {
	resolver := NewResolver(newMockRepository(), nil)

	_, err := resolver.ResolveGlobal(context.Background(), 99)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestResolveGlobalIdempotent(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = RoleAdministrator
	repo.rolePermissions[RoleAdministrator] = []string{PermGroupUpdate, PermGroupDelete}
	resolver := NewResolver(repo, nil)

	first, err := resolver.ResolveGlobal(context.Background(), 1)
	require.NoError(t, err)
	second, err := resolver.ResolveGlobal(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, first.Names(), second.Names())
}

func TestResolveGroupAbsentMembershipIsEmptySet(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = ""
	resolver := NewResolver(repo, nil)

	granted := resolver.ResolveGroup(context.Background(), 1, 10)
	assert.Empty(t, granted.Names())
}

func TestHasGroupOrGlobal(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = ""
	repo.userRoles[2] = RoleAdministrator
	repo.userRoles[3] = ""
	repo.memberships[[2]int64{10, 1}] = RoleGroupOwner
	repo.rolePermissions[RoleGroupOwner] = []string{PermGroupUpdate, PermGroupDelete}
	repo.rolePermissions[RoleAdministrator] = []string{PermGroupUpdate, PermGroupDelete}
	resolver := NewResolver(repo, nil)

	// Group-scoped grant.
	ok, err := resolver.HasGroupOrGlobal(context.Background(), 1, 10, PermGroupUpdate)
	require.NoError(t, err)
	assert.True(t, ok)

	// Global grant without any membership.
	ok, err = resolver.HasGroupOrGlobal(context.Background(), 2, 10, PermGroupUpdate)
	require.NoError(t, err)
	assert.True(t, ok)

	// Neither role nor membership: false for any group and permission.
	for _, groupID := range []int64{10, 11, 99} {
		ok, err = resolver.HasGroupOrGlobal(context.Background(), 3, groupID, "x")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestResolverFailsClosed(t *testing.T) {
	repo := newMockRepository()
	repo.userRoles[1] = RoleAdministrator
	repo.rolePermissions[RoleAdministrator] = []string{PermGroupUpdate}
	resolver := NewResolver(repo, nil)

	repo.rolePermissionsErr = errors.New("storage fault")
	granted, err := resolver.ResolveGlobal(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, granted.Has(PermGroupUpdate), "storage fault must not grant")

	repo.rolePermissionsErr = nil
	repo.membershipErr = errors.New("storage fault")
	assert.Empty(t, resolver.ResolveGroup(context.Background(), 1, 10).Names())

	repo.userRoleErr = errors.New("storage fault")
	ok, err := resolver.HasGlobal(context.Background(), 1, PermGroupUpdate)
	require.NoError(t, err)
	assert.False(t, ok)
}
