package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/authgrid/authgrid/internal/roles"
)

func TestCreateRole_AttachesExactPermissionSet(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-create")
	permIDs := createPermissions(t, pool, "org.read", "roles.manage", "members.invite")

	service := roles.NewService(pool)

	// Duplicates in the input are treated as a set.
	input := append([]uuid.UUID{permIDs[0]}, permIDs...)
	role, err := service.Create(ctx, org.ID, "Editor", "Can edit things", input)
	require.NoError(t, err)
	require.True(t, role.IsActive)
	require.False(t, role.IsDefault)

	got := permissionSet(t, pool, role.ID)
	require.Len(t, got, len(permIDs))
	for _, id := range permIDs {
		require.True(t, got[id])
	}
}

func TestCreateRole_UnknownPermissionRollsBackEverything(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-rollback")
	permIDs := createPermissions(t, pool, "org.read")

	service := roles.NewService(pool)

	_, err := service.Create(ctx, org.ID, "Ghost", "", append(permIDs, uuid.New()))
	require.ErrorIs(t, err, roles.ErrPermissionNotFound)

	// No partial role row may survive the rollback.
	require.Zero(t, countRows(t, pool, `SELECT COUNT(*) FROM roles WHERE org_id = $1`, org.ID))
	require.Zero(t, countRows(t, pool, `SELECT COUNT(*) FROM role_permissions`))
}

func TestCreateRole_DuplicateNameWithinOrg(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	orgA := createOrg(t, pool, "acme-dup-a")
	orgB := createOrg(t, pool, "acme-dup-b")

	service := roles.NewService(pool)

	_, err := service.Create(ctx, orgA.ID, "Editor", "", nil)
	require.NoError(t, err)

	_, err = service.Create(ctx, orgA.ID, "Editor", "", nil)
	require.ErrorIs(t, err, roles.ErrRoleNameConflict)

	// Role names are unique per org, not globally.
	_, err = service.Create(ctx, orgB.ID, "Editor", "", nil)
	require.NoError(t, err)
}

func TestDisableRole_NonAdminIsRejectedWithoutStateChange(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-nonadmin")
	editor := createRole(t, pool, fx.Org.ID, "Editor", nil)

	holder := createUser(t, pool, "holder@example.com")
	assignRole(t, pool, holder.ID, editor.ID)

	outsider := createUser(t, pool, "outsider@example.com")

	service := roles.NewService(pool)
	err := service.Disable(ctx, outsider.ID, fx.Org.ID, editor.ID)
	require.ErrorIs(t, err, roles.ErrInsufficientPermissions)

	got, err := service.GetInOrg(ctx, fx.Org.ID, editor.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	holderRoles, err := service.UserRoleIDs(ctx, fx.Org.ID, holder.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{editor.ID}, holderRoles)
}

func TestDisableRole_RoleFromAnotherOrgIsNotFound(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-scope")
	other := newAdminFixture(t, pool, "acme-scope-other")
	foreignRole := createRole(t, pool, other.Org.ID, "Editor", nil)

	err := roles.NewService(pool).Disable(ctx, fx.Admin.ID, fx.Org.ID, foreignRole.ID)
	require.ErrorIs(t, err, roles.ErrRoleNotFound)
}

func TestDisableRole_ZeroHoldersStillCommits(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-zero")
	editor := createRole(t, pool, fx.Org.ID, "Editor", nil)

	service := roles.NewService(pool)
	require.NoError(t, service.Disable(ctx, fx.Admin.ID, fx.Org.ID, editor.ID))

	got, err := service.GetInOrg(ctx, fx.Org.ID, editor.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestDisableRole_ReassignsEveryHolderToDefault(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-reassign")
	editor := createRole(t, pool, fx.Org.ID, "Editor", nil)

	u2 := createUser(t, pool, "u2@example.com")
	u3 := createUser(t, pool, "u3@example.com")
	assignRole(t, pool, u2.ID, editor.ID)
	assignRole(t, pool, u3.ID, editor.ID)

	service := roles.NewService(pool)
	require.NoError(t, service.Disable(ctx, fx.Admin.ID, fx.Org.ID, editor.ID))

	got, err := service.GetInOrg(ctx, fx.Org.ID, editor.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	for _, u := range []uuid.UUID{u2.ID, u3.ID} {
		ids, err := service.UserRoleIDs(ctx, fx.Org.ID, u)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{fx.MemberRole.ID}, ids)
	}
}

func TestDisableRole_HolderAlreadyOnDefaultRole(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-already")
	editor := createRole(t, pool, fx.Org.ID, "Editor", nil)

	holder := createUser(t, pool, "both@example.com")
	assignRole(t, pool, holder.ID, editor.ID)
	assignRole(t, pool, holder.ID, fx.MemberRole.ID)

	service := roles.NewService(pool)
	require.NoError(t, service.Disable(ctx, fx.Admin.ID, fx.Org.ID, editor.ID))

	ids, err := service.UserRoleIDs(ctx, fx.Org.ID, holder.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{fx.MemberRole.ID}, ids)
}

func TestDisableRole_MissingDefaultRoleRollsBack(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-nodefault")
	admin := createUser(t, pool, "admin-nodefault@example.com")
	adminRole := createRole(t, pool, org.ID, roles.AdminRoleName, nil)
	assignRole(t, pool, admin.ID, adminRole.ID)

	editor := createRole(t, pool, org.ID, "Editor", nil)
	holder := createUser(t, pool, "holder-nodefault@example.com")
	assignRole(t, pool, holder.ID, editor.ID)

	service := roles.NewService(pool)
	err := service.Disable(ctx, admin.ID, org.ID, editor.ID)
	require.ErrorIs(t, err, roles.ErrNoDefaultRole)

	// The is_active flip must have rolled back along with everything else.
	got, err := service.GetInOrg(ctx, org.ID, editor.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	ids, err := service.UserRoleIDs(ctx, org.ID, holder.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{editor.ID}, ids)
}

func TestDisableRole_DefaultRoleItselfIsRejected(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-defaultself")

	err := roles.NewService(pool).Disable(ctx, fx.Admin.ID, fx.Org.ID, fx.MemberRole.ID)
	require.ErrorIs(t, err, roles.ErrRoleIsDefault)
}

func TestSyncPermissions_ReplacesNotMerges(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-sync")
	permIDs := createPermissions(t, pool, "a", "b", "c")
	a, b, c := permIDs[0], permIDs[1], permIDs[2]

	service := roles.NewService(pool)
	role, err := service.Create(ctx, org.ID, "Editor", "", []uuid.UUID{a, b})
	require.NoError(t, err)

	require.NoError(t, service.SyncPermissions(ctx, role.ID, []uuid.UUID{b, c}))

	got := permissionSet(t, pool, role.ID)
	require.Len(t, got, 2)
	require.True(t, got[b])
	require.True(t, got[c])
	require.False(t, got[a])
}

func TestSyncPermissions_Idempotent(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-idem")
	permIDs := createPermissions(t, pool, "x", "y")

	service := roles.NewService(pool)
	role, err := service.Create(ctx, org.ID, "Editor", "", nil)
	require.NoError(t, err)

	require.NoError(t, service.SyncPermissions(ctx, role.ID, permIDs))
	first := permissionSet(t, pool, role.ID)

	require.NoError(t, service.SyncPermissions(ctx, role.ID, permIDs))
	second := permissionSet(t, pool, role.ID)

	require.Equal(t, first, second)
	require.Len(t, second, 2)
}

func TestSyncPermissions_EmptySetClearsAll(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-clear")
	permIDs := createPermissions(t, pool, "p1", "p2")

	service := roles.NewService(pool)
	role, err := service.Create(ctx, org.ID, "Editor", "", permIDs)
	require.NoError(t, err)

	require.NoError(t, service.SyncPermissions(ctx, role.ID, nil))
	require.Empty(t, permissionSet(t, pool, role.ID))
}

func TestSyncPermissions_UnknownRole(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	err := roles.NewService(pool).SyncPermissions(context.Background(), uuid.New(), nil)
	require.ErrorIs(t, err, roles.ErrRoleNotFound)
}

func TestBulkSyncPermissions_SkipsUnknownRoles(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-bulk")
	permIDs := createPermissions(t, pool, "read", "write")

	service := roles.NewService(pool)
	role, err := service.Create(ctx, org.ID, "Editor", "", nil)
	require.NoError(t, err)

	err = service.BulkSyncPermissions(ctx, []roles.BulkEntry{
		{RoleID: uuid.New(), PermissionIDs: permIDs},
		{RoleID: role.ID, PermissionIDs: permIDs},
	})
	require.NoError(t, err)

	got := permissionSet(t, pool, role.ID)
	require.Len(t, got, 2)
}

func TestListByOrg_ReportsAssignmentMatrix(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-matrix")
	permIDs := createPermissions(t, pool, "alpha", "beta")

	service := roles.NewService(pool)
	_, err := service.Create(ctx, org.ID, "Editor", "", permIDs[:1])
	require.NoError(t, err)

	list, err := service.ListByOrg(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Permissions, 2)

	byName := make(map[string]bool)
	for _, p := range list[0].Permissions {
		byName[p.Name] = p.Assigned
	}
	require.True(t, byName["alpha"])
	require.False(t, byName["beta"])
}

func TestAssignByName_IsIdempotent(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-assign")
	user := createUser(t, pool, "assignee@example.com")

	service := roles.NewService(pool)
	require.NoError(t, service.AssignByName(ctx, fx.Org.ID, user.ID, "Member"))
	require.NoError(t, service.AssignByName(ctx, fx.Org.ID, user.ID, "Member"))

	require.Equal(t, 1, countRows(t, pool, `
		SELECT COUNT(*) FROM user_roles WHERE user_id = $1
	`, user.ID))

	require.ErrorIs(t, service.AssignByName(ctx, fx.Org.ID, user.ID, "Nope"), roles.ErrRoleNotFound)
}

func TestSetDefault_MovesTheFlag(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	fx := newAdminFixture(t, pool, "acme-default")
	editor := createRole(t, pool, fx.Org.ID, "Editor", nil)

	service := roles.NewService(pool)
	require.NoError(t, service.SetDefault(ctx, fx.Org.ID, editor.ID))

	got, err := service.GetInOrg(ctx, fx.Org.ID, editor.ID)
	require.NoError(t, err)
	require.True(t, got.IsDefault)

	prev, err := service.GetInOrg(ctx, fx.Org.ID, fx.MemberRole.ID)
	require.NoError(t, err)
	require.False(t, prev.IsDefault)

	require.Equal(t, 1, countRows(t, pool, `
		SELECT COUNT(*) FROM roles WHERE org_id = $1 AND is_default
	`, fx.Org.ID))
}

func TestEndToEnd_DisableEditorMigratesHolders(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	// Org O with default role "Member", admin role "Admin" held by U1,
	// and role "Editor" held by U2 and U3.
	fx := newAdminFixture(t, pool, "acme-e2e")
	editor := createRole(t, pool, fx.Org.ID, "Editor", nil)

	u2 := createUser(t, pool, "e2e-u2@example.com")
	u3 := createUser(t, pool, "e2e-u3@example.com")
	assignRole(t, pool, u2.ID, editor.ID)
	assignRole(t, pool, u3.ID, editor.ID)

	service := roles.NewService(pool)
	require.NoError(t, service.Disable(ctx, fx.Admin.ID, fx.Org.ID, editor.ID))

	got, err := service.GetInOrg(ctx, fx.Org.ID, editor.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	for _, u := range []uuid.UUID{u2.ID, u3.ID} {
		ids, err := service.UserRoleIDs(ctx, fx.Org.ID, u)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{fx.MemberRole.ID}, ids)
	}
}
