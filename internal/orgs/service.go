package orgs

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
	// ErrOrgNotFound is returned when an organisation is not found
	ErrOrgNotFound = errors.New("organisation not found")

	// ErrOrgIDConflict is returned when an external org ID already exists
	ErrOrgIDConflict = errors.New("organisation ID already exists")

	// ErrNotMember is returned when a user is not a member of an organisation
	ErrNotMember = errors.New("user is not a member of this organisation")
)

// Service provides organisation-related operations
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new organisation service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Create creates a new organisation with the given external org ID.
func (s *Service) Create(ctx context.Context, orgID, name, description string) (*Org, error) {
	orgID = validation.NormalizeOrgID(orgID)
	if err := validation.ValidateOrgID(orgID); err != nil {
		return nil, err
	}

	var org Org
	query := `
		INSERT INTO orgs (org_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, org_id, name, description, created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query, orgID, name, description).Scan(
		&org.ID,
		&org.OrgID,
		&org.Name,
		&org.Description,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrOrgIDConflict
		}
		return nil, fmt.Errorf("failed to create organisation: %w", err)
	}

	return &org, nil
}

// GetByOrgID retrieves an organisation by its external-facing org ID
func (s *Service) GetByOrgID(ctx context.Context, orgID string) (*Org, error) {
	var org Org

	query := `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM orgs
		WHERE org_id = $1
	`

	err := s.pool.QueryRow(ctx, query, validation.NormalizeOrgID(orgID)).Scan(
		&org.ID,
		&org.OrgID,
		&org.Name,
		&org.Description,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organisation: %w", err)
	}

	return &org, nil
}

// GetByID retrieves an organisation by internal ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Org, error) {
	var org Org

	query := `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM orgs
		WHERE id = $1
	`

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&org.ID,
		&org.OrgID,
		&org.Name,
		&org.Description,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organisation: %w", err)
	}

	return &org, nil
}

// AttachMember adds a user to an organisation. Attaching an existing
// member is a no-op, so the operation is safe to repeat.
func (s *Service) AttachMember(ctx context.Context, orgID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO org_memberships (org_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (org_id, user_id) DO NOTHING
	`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to attach member: %w", err)
	}
	return nil
}

// IsMember reports whether the user belongs to the organisation
func (s *Service) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM org_memberships
			WHERE org_id = $1 AND user_id = $2
		)
	`, orgID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// ListMembers retrieves all members of an organisation
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]MemberInfo, error) {
	query := `
		SELECT m.user_id, u.email, m.created_at
		FROM org_memberships m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.org_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var member MemberInfo
		if err := rows.Scan(&member.UserID, &member.Email, &member.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	return members, nil
}
