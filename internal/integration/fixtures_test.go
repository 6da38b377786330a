package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authgrid/authgrid/internal/orgs"
	"github.com/authgrid/authgrid/internal/permissions"
	"github.com/authgrid/authgrid/internal/roles"
	"github.com/authgrid/authgrid/internal/users"
)

func createUser(t *testing.T, pool *pgxpool.Pool, email string) *users.User {
	t.Helper()
	user, err := users.NewService(pool).Create(context.Background(), email, "password123")
	if err != nil {
		t.Fatalf("failed to create user %q: %v", email, err)
	}
	return user
}

func createOrg(t *testing.T, pool *pgxpool.Pool, orgID string) *orgs.Org {
	t.Helper()
	org, err := orgs.NewService(pool).Create(context.Background(), orgID, "Org "+orgID, "")
	if err != nil {
		t.Fatalf("failed to create org %q: %v", orgID, err)
	}
	return org
}

func attachMember(t *testing.T, pool *pgxpool.Pool, orgID, userID uuid.UUID) {
	t.Helper()
	if err := orgs.NewService(pool).AttachMember(context.Background(), orgID, userID); err != nil {
		t.Fatalf("failed to attach member: %v", err)
	}
}

func createPermissions(t *testing.T, pool *pgxpool.Pool, names ...string) []uuid.UUID {
	t.Helper()
	service := permissions.NewService(pool)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		perm, err := service.Create(context.Background(), name)
		if err != nil {
			t.Fatalf("failed to create permission %q: %v", name, err)
		}
		ids = append(ids, perm.ID)
	}
	return ids
}

func createRole(t *testing.T, pool *pgxpool.Pool, orgID uuid.UUID, name string, permissionIDs []uuid.UUID) *roles.Role {
	t.Helper()
	role, err := roles.NewService(pool).Create(context.Background(), orgID, name, "", permissionIDs)
	if err != nil {
		t.Fatalf("failed to create role %q: %v", name, err)
	}
	return role
}

func setDefaultRole(t *testing.T, pool *pgxpool.Pool, orgID, roleID uuid.UUID) {
	t.Helper()
	if err := roles.NewService(pool).SetDefault(context.Background(), orgID, roleID); err != nil {
		t.Fatalf("failed to set default role: %v", err)
	}
}

func assignRole(t *testing.T, pool *pgxpool.Pool, userID, roleID uuid.UUID) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleID)
	if err != nil {
		t.Fatalf("failed to assign role: %v", err)
	}
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var count int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&count); err != nil {
		t.Fatalf("failed to count rows (%s): %v", query, err)
	}
	return count
}

func permissionSet(t *testing.T, pool *pgxpool.Pool, roleID uuid.UUID) map[uuid.UUID]bool {
	t.Helper()
	ids, err := roles.NewService(pool).RolePermissionIDs(context.Background(), roleID)
	if err != nil {
		t.Fatalf("failed to read role permissions: %v", err)
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// adminFixture is the common starting point: an org with an Admin role
// held by the admin user and a default Member role.
type adminFixture struct {
	Org        *orgs.Org
	Admin      *users.User
	AdminRole  *roles.Role
	MemberRole *roles.Role
}

func newAdminFixture(t *testing.T, pool *pgxpool.Pool, orgID string) adminFixture {
	t.Helper()

	org := createOrg(t, pool, orgID)
	admin := createUser(t, pool, fmt.Sprintf("admin-%s@example.com", orgID))
	attachMember(t, pool, org.ID, admin.ID)

	adminRole := createRole(t, pool, org.ID, roles.AdminRoleName, nil)
	assignRole(t, pool, admin.ID, adminRole.ID)

	memberRole := createRole(t, pool, org.ID, "Member", nil)
	setDefaultRole(t, pool, org.ID, memberRole.ID)

	return adminFixture{
		Org:        org,
		Admin:      admin,
		AdminRole:  adminRole,
		MemberRole: memberRole,
	}
}
