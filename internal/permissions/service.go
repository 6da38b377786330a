package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNameConflict is returned when a permission name already exists
	ErrNameConflict = errors.New("permission name already exists")

	// ErrNameEmpty is returned when a permission name is empty
	ErrNameEmpty = errors.New("permission name is required")
)

// DefaultCatalog is the baseline permission set seeded into new
// deployments by the admin CLI.
var DefaultCatalog = []string{
	"org.read",
	"org.update",
	"members.read",
	"members.invite",
	"roles.read",
	"roles.manage",
	"permissions.read",
	"permissions.assign",
}

// Service provides access to the global permission catalog
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new permission catalog service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Create adds a permission to the global catalog
func (s *Service) Create(ctx context.Context, name string) (*Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameEmpty
	}

	var perm Permission
	err := s.pool.QueryRow(ctx, `
		INSERT INTO permissions (name)
		VALUES ($1)
		RETURNING id, name, created_at
	`, name).Scan(&perm.ID, &perm.Name, &perm.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrNameConflict
		}
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	return &perm, nil
}

// List returns the whole catalog ordered by name
func (s *Service) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM permissions
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permission rows: %w", err)
	}

	return perms, nil
}

// Seed inserts the given permission names, skipping ones that already
// exist. Returns the number of newly created entries.
func (s *Service) Seed(ctx context.Context, names []string) (int64, error) {
	var created int64
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		tag, err := s.pool.Exec(ctx, `
			INSERT INTO permissions (name)
			VALUES ($1)
			ON CONFLICT (name) DO NOTHING
		`, name)
		if err != nil {
			return created, fmt.Errorf("failed to seed permission %q: %w", name, err)
		}
		created += tag.RowsAffected()
	}
	return created, nil
}
