package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// SyncPermissions makes the role's permission set exactly equal to the
// given set: omitted permissions are detached and missing ones
// attached, inside one transaction. The operation replaces, it never
// merges. An unknown role id is a typed not-found error.
func (s *Service) SyncPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	permissionIDs = dedupeIDs(permissionIDs)
	if permissionIDs == nil {
		permissionIDs = []uuid.UUID{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the role row; concurrent syncs of the same role serialize
	// here instead of interleaving deletes and inserts.
	var exists uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM roles
		WHERE id = $1
		FOR UPDATE
	`, roleID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("failed to lock role: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1
		  AND permission_id <> ALL($2::uuid[])
	`, roleID, permissionIDs); err != nil {
		return fmt.Errorf("failed to detach permissions: %w", err)
	}

	if len(permissionIDs) > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, unnest($2::uuid[])
			ON CONFLICT (role_id, permission_id) DO NOTHING
		`, roleID, permissionIDs)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
				return ErrPermissionNotFound
			}
			return fmt.Errorf("failed to attach permissions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// BulkSyncPermissions applies each entry as an independent replace-set
// synchronization. Entries referencing unknown roles are skipped
// without error; there is no batch-level transaction, so a store
// failure partway through leaves earlier entries applied.
func (s *Service) BulkSyncPermissions(ctx context.Context, entries []BulkEntry) error {
	for _, entry := range entries {
		err := s.SyncPermissions(ctx, entry.RoleID, entry.PermissionIDs)
		if errors.Is(err, ErrRoleNotFound) {
			log.Debug().
				Str("role_id", entry.RoleID.String()).
				Msg("Bulk sync: role not found, skipping entry")
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RolePermissionIDs returns the ids of the permissions attached to a role.
func (s *Service) RolePermissionIDs(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT permission_id
		FROM role_permissions
		WHERE role_id = $1
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan permission id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListByOrg returns all roles in the organisation with their assignment
// state against the whole permission catalog.
func (s *Service) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]RoleWithPermissions, error) {
	roleRows, err := s.pool.Query(ctx, `
		SELECT id, name, description, is_active, is_default
		FROM roles
		WHERE org_id = $1
		ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer roleRows.Close()

	var result []RoleWithPermissions
	for roleRows.Next() {
		var role RoleWithPermissions
		if err := roleRows.Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.IsDefault); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		result = append(result, role)
	}
	if err := roleRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}

	catalogRows, err := s.pool.Query(ctx, `
		SELECT id, name
		FROM permissions
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer catalogRows.Close()

	type catalogEntry struct {
		id   uuid.UUID
		name string
	}
	var catalog []catalogEntry
	for catalogRows.Next() {
		var entry catalogEntry
		if err := catalogRows.Scan(&entry.id, &entry.name); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		catalog = append(catalog, entry)
	}
	if err := catalogRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permission rows: %w", err)
	}

	assigned := make(map[uuid.UUID]map[uuid.UUID]bool)
	assignRows, err := s.pool.Query(ctx, `
		SELECT rp.role_id, rp.permission_id
		FROM role_permissions rp
		INNER JOIN roles r ON r.id = rp.role_id
		WHERE r.org_id = $1
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer assignRows.Close()

	for assignRows.Next() {
		var roleID, permissionID uuid.UUID
		if err := assignRows.Scan(&roleID, &permissionID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if assigned[roleID] == nil {
			assigned[roleID] = make(map[uuid.UUID]bool)
		}
		assigned[roleID][permissionID] = true
	}
	if err := assignRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignment rows: %w", err)
	}

	for i := range result {
		perms := make([]PermissionAssignment, 0, len(catalog))
		for _, entry := range catalog {
			perms = append(perms, PermissionAssignment{
				ID:       entry.id,
				Name:     entry.name,
				Assigned: assigned[result[i].ID][entry.id],
			})
		}
		result[i].Permissions = perms
	}

	return result, nil
}
