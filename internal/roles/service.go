package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authgrid/authgrid/internal/validation"
)

var (
	// ErrRoleNotFound is returned when a role does not exist in the given org
	ErrRoleNotFound = errors.New("role not found")

	// ErrPermissionNotFound is returned when a referenced permission id
	// does not exist in the catalog
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrRoleNameConflict is returned when the role name is taken within the org
	ErrRoleNameConflict = errors.New("role name already exists in organisation")

	// ErrInsufficientPermissions is returned when the acting user lacks
	// the org's Admin role
	ErrInsufficientPermissions = errors.New("insufficient permission")

	// ErrNoDefaultRole is returned when an org has no active default
	// role to migrate users to
	ErrNoDefaultRole = errors.New("organisation has no active default role")

	// ErrRoleIsDefault is returned when attempting to disable the
	// default role itself
	ErrRoleIsDefault = errors.New("cannot disable the default role")
)

// Service provides role management operations
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new role management service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Create inserts a new role scoped to the organisation and attaches the
// given permission set to it, all in one transaction. Duplicate
// permission ids are tolerated and treated as a set. Any failure,
// including an unknown permission id, rolls the whole operation back so
// no partial role is left behind.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, name, description string, permissionIDs []uuid.UUID) (*Role, error) {
	if err := validation.ValidateRoleName(name); err != nil {
		return nil, err
	}
	permissionIDs = dedupeIDs(permissionIDs)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var role Role
	err = tx.QueryRow(ctx, `
		INSERT INTO roles (org_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, org_id, name, description, is_active, is_default, created_at, updated_at
	`, orgID, name, description).Scan(
		&role.ID,
		&role.OrgID,
		&role.Name,
		&role.Description,
		&role.IsActive,
		&role.IsDefault,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrRoleNameConflict
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	if len(permissionIDs) > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, unnest($2::uuid[])
		`, role.ID, permissionIDs)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
				return nil, ErrPermissionNotFound
			}
			return nil, fmt.Errorf("failed to attach permissions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &role, nil
}

// GetInOrg retrieves a role by id scoped to the organisation. A role id
// belonging to a different org is treated as not found.
func (s *Service) GetInOrg(ctx context.Context, orgID, roleID uuid.UUID) (*Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, name, description, is_active, is_default, created_at, updated_at
		FROM roles
		WHERE id = $1 AND org_id = $2
	`, roleID, orgID).Scan(
		&role.ID,
		&role.OrgID,
		&role.Name,
		&role.Description,
		&role.IsActive,
		&role.IsDefault,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return &role, nil
}

// HasAdminRole reports whether the user holds the org's Admin role.
func (s *Service) HasAdminRole(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	var isAdmin bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			INNER JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = $1
			  AND r.org_id = $2
			  AND r.name = $3
			  AND r.is_active
		)
	`, userID, orgID, AdminRoleName).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return isAdmin, nil
}

// Disable deactivates a role and migrates every holder to the org's
// default role. Preconditions are checked read-only before any
// mutation: the acting user must hold the org's Admin role, and the
// role must exist within the org. The flip and all reassignments commit
// together or not at all. For each holder the default role is attached
// before the disabled role is detached, so no user passes through a
// zero-role state.
func (s *Service) Disable(ctx context.Context, actorUserID, orgID, roleID uuid.UUID) error {
	isAdmin, err := s.HasAdminRole(ctx, actorUserID, orgID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return ErrInsufficientPermissions
	}

	role, err := s.GetInOrg(ctx, orgID, roleID)
	if err != nil {
		return err
	}
	if role.IsDefault {
		return ErrRoleIsDefault
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the role row so concurrent disables of the same role cannot
	// interleave their reassignments.
	var isActive bool
	err = tx.QueryRow(ctx, `
		SELECT is_active
		FROM roles
		WHERE id = $1 AND org_id = $2
		FOR UPDATE
	`, roleID, orgID).Scan(&isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("failed to lock role: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE roles
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
	`, roleID); err != nil {
		return fmt.Errorf("failed to disable role: %w", err)
	}

	var defaultRoleID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM roles
		WHERE org_id = $1 AND is_default AND is_active
		FOR UPDATE
	`, orgID).Scan(&defaultRoleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoDefaultRole
		}
		return fmt.Errorf("failed to load default role: %w", err)
	}

	holders, err := roleHolders(ctx, tx, roleID)
	if err != nil {
		return err
	}

	for _, userID := range holders {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, role_id) DO NOTHING
		`, userID, defaultRoleID); err != nil {
			return fmt.Errorf("failed to attach default role: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM user_roles
			WHERE user_id = $1 AND role_id = $2
		`, userID, roleID); err != nil {
			return fmt.Errorf("failed to detach disabled role: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SetDefault designates a role as the organisation's default, clearing
// the flag from any previous default in the same transaction so the
// one-default-per-org invariant holds throughout.
func (s *Service) SetDefault(ctx context.Context, orgID, roleID uuid.UUID) error {
	role, err := s.GetInOrg(ctx, orgID, roleID)
	if err != nil {
		return err
	}
	if !role.IsActive {
		return ErrRoleNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		UPDATE roles
		SET is_default = FALSE, updated_at = NOW()
		WHERE org_id = $1 AND is_default
	`, orgID); err != nil {
		return fmt.Errorf("failed to clear default role: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE roles
		SET is_default = TRUE, updated_at = NOW()
		WHERE id = $1
	`, roleID); err != nil {
		return fmt.Errorf("failed to set default role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// AssignByName attaches the org role with the given name to a user.
// Attaching a role the user already holds is a no-op.
func (s *Service) AssignByName(ctx context.Context, orgID, userID uuid.UUID, roleName string) error {
	var roleID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id
		FROM roles
		WHERE org_id = $1 AND name = $2 AND is_active
	`, orgID, roleName).Scan(&roleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("failed to resolve role: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}

// UserRoleIDs returns the ids of all roles the user holds within the org.
func (s *Service) UserRoleIDs(ctx context.Context, orgID, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id
		FROM user_roles ur
		INNER JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 AND r.org_id = $2
	`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func roleHolders(ctx context.Context, tx pgx.Tx, roleID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id
		FROM user_roles
		WHERE role_id = $1
		FOR UPDATE
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role holders: %w", err)
	}
	defer rows.Close()

	var holders []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan role holder: %w", err)
		}
		holders = append(holders, userID)
	}

	return holders, rows.Err()
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
