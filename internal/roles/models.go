package roles

import (
	"time"

	"github.com/google/uuid"
)

// AdminRoleName is the org-scoped role that grants administrative
// operations such as disabling other roles.
const AdminRoleName = "Admin"

// Role is an org-scoped role. Role names are unique within one
// organisation, not globally. At most one role per organisation may be
// the default; disabled roles migrate their holders to it.
type Role struct {
	ID          uuid.UUID `db:"id"`
	OrgID       uuid.UUID `db:"org_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsActive    bool      `db:"is_active"`
	IsDefault   bool      `db:"is_default"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// PermissionAssignment reports, for one role, whether a catalog
// permission is assigned to it.
type PermissionAssignment struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Assigned bool      `json:"assigned"`
}

// RoleWithPermissions is a role plus its assignment state against the
// whole permission catalog.
type RoleWithPermissions struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	IsActive    bool                   `json:"is_active"`
	IsDefault   bool                   `json:"is_default"`
	Permissions []PermissionAssignment `json:"permissions"`
}

// BulkEntry pairs a role with the exact permission set it should carry
// after a bulk synchronization.
type BulkEntry struct {
	RoleID        uuid.UUID   `json:"role_id"`
	PermissionIDs []uuid.UUID `json:"permissions"`
}
