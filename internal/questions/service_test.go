package questions

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/platform/httpx"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/shared"
)

type mockRepository struct {
	questions map[int64]*Question
	created   []Question
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return q, nil
}

func (m *mockRepository) ListByGroup(_ context.Context, groupID int64, _, _ int) ([]Question, int, error) {
	var list []Question
	for _, q := range m.questions {
		if q.GroupID == groupID {
			list = append(list, *q)
		}
	}
	return list, len(list), nil
}

func (m *mockRepository) Create(_ context.Context, q Question) (*Question, error) {
	q.ID = int64(len(m.created) + 1000)
	m.created = append(m.created, q)
	return &q, nil
}

func (m *mockRepository) Update(context.Context, int64, map[string]any) (*Question, error) {
	return nil, httpx.ErrNotFound
}

func (m *mockRepository) Delete(context.Context, int64) error { return nil }

var _ Repository = (*mockRepository)(nil)

type mockAuthzRepo struct {
	privacy     map[int64]bool
	memberships map[[2]int64]bool
	questions   map[int64][2]int64
}

func (m *mockAuthzRepo) GroupIsPrivate(_ context.Context, groupID int64) (bool, error) {
	isPrivate, ok := m.privacy[groupID]
	if !ok {
		return false, httpx.ErrNotFound
	}
	return isPrivate, nil
}

func (m *mockAuthzRepo) Membership(_ context.Context, groupID, userID int64) (*authz.Membership, error) {
	if !m.memberships[[2]int64{groupID, userID}] {
		return nil, httpx.ErrNotFound
	}
	return &authz.Membership{GroupID: groupID, UserID: userID, RoleName: rbac.RoleGroupMember}, nil
}


func (m *mockAuthzRepo) QuestionRef(_ context.Context, id int64) (int64, int64, error) {
	ref, ok := m.questions[id]
	if !ok {
		return 0, 0, httpx.ErrNotFound
	}
	return ref[0], ref[1], nil
}

func (m *mockAuthzRepo) AnswerRef(context.Context, int64) (int64, int64, error) {
	return 0, 0, httpx.ErrNotFound
}

func (m *mockAuthzRepo) CommentRef(context.Context, int64) (int64, int64, error) {
	return 0, 0, httpx.ErrNotFound
}

var _ authz.Repository = (*mockAuthzRepo)(nil)

type adminRBACRepo struct {
	admins map[int64]bool
}

func (r adminRBACRepo) UserRoleName(_ context.Context, userID int64) (string, error) {
	if r.admins[userID] {
		return rbac.RoleAdministrator, nil
	}
	return "", nil
}

func (r adminRBACRepo) MembershipRoleName(context.Context, int64, int64) (string, error) {
	return "", rbac.ErrNoMembership
}

func (r adminRBACRepo) RolePermissionNames(_ context.Context, roleName string) ([]string, error) {
	if roleName == rbac.RoleAdministrator {
		return rbac.AllPermissions(), nil
	}
	return nil, nil
}

func (r adminRBACRepo) ListRoles(context.Context) ([]rbac.Role, error)             { return nil, nil }
func (r adminRBACRepo) ListPermissions(context.Context) ([]rbac.Permission, error) { return nil, nil }
func (r adminRBACRepo) ListRolePermissions(context.Context, string) ([]rbac.RolePermission, error) {
	return nil, nil
}

// Group 2 is private; user 10 is a member, user 20 is not, user 30 is an
// administrator. Question 100 is user 10's post in group 2.
func fixture() (*Service, *mockRepository) {
	repo := &mockRepository{questions: map[int64]*Question{
		100: {ID: 100, GroupID: 2, UserID: 10, Title: "first"},
	}}
	authzRepo := &mockAuthzRepo{
		privacy:     map[int64]bool{2: true},
		memberships: map[[2]int64]bool{{2, 10}: true},
		questions:   map[int64][2]int64{100: {10, 2}},
	}
	resolver := rbac.NewResolver(adminRBACRepo{admins: map[int64]bool{30: true}}, slog.Default())
	guard := authz.NewGuard(authzRepo, resolver, slog.Default())
	return NewService(repo, guard), repo
}

func TestCreateRequiresMembership(t *testing.T) {
	svc, repo := fixture()
	ctx := context.Background()
	req := CreateRequest{GroupID: 2, Title: "how do I shift a slice"}

	_, err := svc.Create(ctx, 20, req)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Empty(t, repo.created)

	q, err := svc.Create(ctx, 10, req)
	require.NoError(t, err)
	require.EqualValues(t, 10, q.UserID)

	// The membership bypass lets an administrator post without joining.
	q, err = svc.Create(ctx, 30, req)
	require.NoError(t, err)
	require.EqualValues(t, 30, q.UserID)
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _ := fixture()

	_, err := svc.Create(context.Background(), 10, CreateRequest{GroupID: 2, Title: "  "})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGetWalksViewAccess(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, 100, nil)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	_, err = svc.Get(ctx, 100, &shared.Identity{UserID: 20})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	q, err := svc.Get(ctx, 100, &shared.Identity{UserID: 10})
	require.NoError(t, err)
	require.Equal(t, "first", q.Title)
}

func TestListByGroupChecksGroupView(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()
	page := shared.PageRequest{Page: 1, PerPage: 10}

	_, _, err := svc.ListByGroup(ctx, 2, &shared.Identity{UserID: 20}, page)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	list, pagination, err := svc.ListByGroup(ctx, 2, &shared.Identity{UserID: 10}, page)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, pagination.Total)
}
