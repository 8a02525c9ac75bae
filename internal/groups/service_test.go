package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
)

type mockRepository struct {
	groups      map[int64]*Group
	memberships []Membership
	removed     []int64

	membershipErr error
	addErr        error
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return g, nil
}

func (m *mockRepository) List(context.Context, int, int) ([]Group, int, error) {
	return nil, 0, nil
}

func (m *mockRepository) CreateWithOwner(_ context.Context, group Group, ownerID int64) (*Group, *Membership, error) {
	group.ID = 1
	return &group, &Membership{ID: 1, GroupID: 1, UserID: ownerID, RoleName: rbac.RoleGroupOwner}, nil
}

func (m *mockRepository) Update(context.Context, int64, map[string]any) (*Group, error) {
	return nil, httpx.ErrNotFound
}

func (m *mockRepository) Delete(context.Context, int64) error { return nil }

func (m *mockRepository) Membership(_ context.Context, groupID, userID int64) (*Membership, error) {
	if m.membershipErr != nil {
		return nil, m.membershipErr
	}
	for i := range m.memberships {
		if m.memberships[i].GroupID == groupID && m.memberships[i].UserID == userID {
			return &m.memberships[i], nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *mockRepository) ListMembers(context.Context, int64, int, int) ([]Membership, int, error) {
	return nil, 0, nil
}

func (m *mockRepository) MemberCount(_ context.Context, groupID int64) (int, error) {
	count := 0
	for i := range m.memberships {
		if m.memberships[i].GroupID == groupID {
			count++
		}
	}
	return count, nil
}

func (m *mockRepository) OwnerMembership(_ context.Context, groupID int64) (*Membership, error) {
	for i := range m.memberships {
		if m.memberships[i].GroupID == groupID && m.memberships[i].RoleName == rbac.RoleGroupOwner {
			return &m.memberships[i], nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *mockRepository) AddMember(_ context.Context, groupID, userID int64, roleName string) (*Membership, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &Membership{ID: 99, GroupID: groupID, UserID: userID, RoleName: roleName}, nil
}

func (m *mockRepository) RemoveMember(_ context.Context, membershipID int64) error {
	m.removed = append(m.removed, membershipID)
	return nil
}

var _ Repository = (*mockRepository)(nil)

type mockRBACRepo struct {
	userRoles map[int64]string
	rolePerms map[string][]string
}

func (m *mockRBACRepo) UserRoleName(_ context.Context, userID int64) (string, error) {
	role, ok := m.userRoles[userID]
	if !ok {
		return "", rbac.ErrUserNotFound
	}
	return role, nil
}

func (m *mockRBACRepo) MembershipRoleName(context.Context, int64, int64) (string, error) {
	return "", rbac.ErrNoMembership
}

func (m *mockRBACRepo) RolePermissionNames(_ context.Context, roleName string) ([]string, error) {
	return m.rolePerms[roleName], nil
}

func (m *mockRBACRepo) ListRoles(context.Context) ([]rbac.Role, error)             { return nil, nil }
func (m *mockRBACRepo) ListPermissions(context.Context) ([]rbac.Permission, error) { return nil, nil }
func (m *mockRBACRepo) ListRolePermissions(context.Context, string) ([]rbac.RolePermission, error) {
	return nil, nil
}

func newTestService(repo *mockRepository, rbacRepo *mockRBACRepo) *Service {
	logger := slog.Default()
	resolver := rbac.NewResolver(rbacRepo, logger)
	guard := authz.NewGuard(nil, resolver, logger)
	return NewService(repo, guard)
}

func plainUsers(ids ...int64) map[int64]string {
	roles := make(map[int64]string, len(ids))
	for _, id := range ids {
		roles[id] = ""
	}
	return roles
}

func TestCreateRequiresName(t *testing.T) {
	svc := newTestService(&mockRepository{}, &mockRBACRepo{})

	_, _, err := svc.Create(context.Background(), 1, CreateRequest{Name: "   "})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestJoinDuplicateMembership(t *testing.T) {
	repo := &mockRepository{
		groups: map[int64]*Group{7: {ID: 7, Name: "gophers"}},
		addErr: fmt.Errorf("%w: duplicate key", httpx.ErrDuplicate),
	}
	svc := newTestService(repo, &mockRBACRepo{})

	_, err := svc.Join(context.Background(), 7, 3)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestJoinUnknownGroup(t *testing.T) {
	svc := newTestService(&mockRepository{groups: map[int64]*Group{}}, &mockRBACRepo{})

	_, err := svc.Join(context.Background(), 404, 3)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRemoveMemberSelf(t *testing.T) {
	repo := &mockRepository{
		memberships: []Membership{
			{ID: 1, GroupID: 7, UserID: 1, RoleName: rbac.RoleGroupOwner},
			{ID: 2, GroupID: 7, UserID: 3, RoleName: rbac.RoleGroupMember},
		},
	}
	svc := newTestService(repo, &mockRBACRepo{userRoles: plainUsers(1, 3)})

	err := svc.RemoveMember(context.Background(), 3, 7, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, repo.removed)
}

func TestRemoveMemberForbiddenWithoutBypass(t *testing.T) {
	repo := &mockRepository{
		memberships: []Membership{
			{ID: 1, GroupID: 7, UserID: 1, RoleName: rbac.RoleGroupOwner},
			{ID: 2, GroupID: 7, UserID: 3, RoleName: rbac.RoleGroupMember},
		},
	}
	svc := newTestService(repo, &mockRBACRepo{userRoles: plainUsers(1, 3, 5)})

	err := svc.RemoveMember(context.Background(), 5, 7, 3)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Empty(t, repo.removed)
}

func TestRemoveMemberWithGlobalBypass(t *testing.T) {
	repo := &mockRepository{
		memberships: []Membership{
			{ID: 1, GroupID: 7, UserID: 1, RoleName: rbac.RoleGroupOwner},
			{ID: 2, GroupID: 7, UserID: 3, RoleName: rbac.RoleGroupMember},
		},
	}
	rbacRepo := &mockRBACRepo{
		userRoles: map[int64]string{3: "", 9: rbac.RoleAdministrator},
		rolePerms: map[string][]string{
			rbac.RoleAdministrator: {rbac.PermGroupUserBypassOwnership},
		},
	}
	svc := newTestService(repo, rbacRepo)

	err := svc.RemoveMember(context.Background(), 9, 7, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, repo.removed)
}

func TestRemoveMemberOwnerRetention(t *testing.T) {
	repo := &mockRepository{
		memberships: []Membership{
			{ID: 1, GroupID: 7, UserID: 1, RoleName: rbac.RoleGroupOwner},
			{ID: 2, GroupID: 7, UserID: 3, RoleName: rbac.RoleGroupMember},
		},
	}
	rbacRepo := &mockRBACRepo{
		userRoles: map[int64]string{1: "", 9: rbac.RoleAdministrator},
		rolePerms: map[string][]string{
			rbac.RoleAdministrator: {rbac.PermGroupUserBypassOwnership},
		},
	}
	svc := newTestService(repo, rbacRepo)

	// The owner membership stays put even for a caller holding the bypass.
	err := svc.RemoveMember(context.Background(), 9, 7, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.ErrorContains(t, err, "owner")
	require.Empty(t, repo.removed)

	// The owner cannot remove themselves either.
	err = svc.RemoveMember(context.Background(), 1, 7, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.removed)
}

func TestRemoveMemberLastMember(t *testing.T) {
	repo := &mockRepository{
		memberships: []Membership{
			{ID: 2, GroupID: 7, UserID: 3, RoleName: rbac.RoleGroupMember},
		},
	}
	rbacRepo := &mockRBACRepo{
		userRoles: map[int64]string{3: "", 9: rbac.RoleAdministrator},
		rolePerms: map[string][]string{
			rbac.RoleAdministrator: {rbac.PermGroupUserBypassOwnership},
		},
	}
	svc := newTestService(repo, rbacRepo)

	err := svc.RemoveMember(context.Background(), 9, 7, 3)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.ErrorContains(t, err, "last member")
	require.Empty(t, repo.removed)

	err = svc.RemoveMember(context.Background(), 3, 7, 3)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.removed)
}

func TestRemoveMemberUnknownMembership(t *testing.T) {
	repo := &mockRepository{membershipErr: fmt.Errorf("%w: membership", httpx.ErrNotFound)}
	svc := newTestService(repo, &mockRBACRepo{userRoles: plainUsers(1)})

	err := svc.RemoveMember(context.Background(), 1, 7, 42)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Empty(t, repo.removed)
}

func TestRemoveMemberRepositoryFault(t *testing.T) {
	repo := &mockRepository{membershipErr: errors.New("connection reset")}
	svc := newTestService(repo, &mockRBACRepo{userRoles: plainUsers(1)})

	err := svc.RemoveMember(context.Background(), 1, 7, 3)
	require.Error(t, err)
	require.NotErrorIs(t, err, httpx.ErrNotFound)
}
