package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authgrid/authgrid/internal/orgs"
	"github.com/authgrid/authgrid/internal/users"
)

// Service provides the invitation lifecycle: issuing time-bounded
// tokens scoped to one organisation and redeeming them into
// memberships.
type Service struct {
	pool  *pgxpool.Pool
	orgs  *orgs.Service
	users *users.Service
}

// NewService creates a new invitation service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{
		pool:  pool,
		orgs:  orgs.NewService(pool),
		users: users.NewService(pool),
	}
}

// Generate validates and issues a new invitation. All validation
// precedes the single insert: the organisation must exist, the email
// must be valid and belong to an existing user, that user must already
// be a member of the organisation, and the expiry must be strictly in
// the future. Returns the stored invite and the raw token, which is
// never persisted.
func (s *Service) Generate(ctx context.Context, orgID, email string, expiresAt time.Time) (*Invite, string, error) {
	org, err := s.orgs.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, "", err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}

	isMember, err := s.orgs.IsMember(ctx, org.ID, user.ID)
	if err != nil {
		return nil, "", err
	}
	if !isMember {
		return nil, "", orgs.ErrNotMember
	}

	if !expiresAt.After(time.Now().UTC()) {
		return nil, "", ErrExpiryNotFuture
	}

	for attempt := 0; attempt < 3; attempt++ {
		token, tokenHash, err := GenerateToken()
		if err != nil {
			return nil, "", err
		}

		var invite Invite
		err = s.pool.QueryRow(ctx, `
			INSERT INTO invites (public_id, org_id, email, token_hash, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, public_id, org_id, email, expires_at, created_at
		`, uuid.New(), org.ID, user.Email, tokenHash, expiresAt.UTC()).Scan(
			&invite.ID,
			&invite.PublicID,
			&invite.OrgID,
			&invite.Email,
			&invite.ExpiresAt,
			&invite.CreatedAt,
		)
		if err == nil {
			return &invite, token, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Token hash collision (extremely unlikely); retry.
			continue
		}
		return nil, "", fmt.Errorf("failed to create invite: %w", err)
	}

	return nil, "", ErrTokenCollision
}

// Accept redeems an invitation token and attaches the invited user to
// the organisation. Unknown and expired tokens both surface as
// ErrInviteInvalid. The membership attach is idempotent: redeeming a
// still-valid token again succeeds without creating duplicate rows.
func (s *Service) Accept(ctx context.Context, token string) (*Acceptance, error) {
	if !ValidateTokenFormat(token) {
		return nil, ErrInviteInvalid
	}
	tokenHash := HashToken(token)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var invite Invite
	err = tx.QueryRow(ctx, `
		SELECT id, public_id, org_id, email, expires_at, created_at
		FROM invites
		WHERE token_hash = $1
		  AND expires_at > NOW()
		FOR UPDATE
	`, tokenHash).Scan(
		&invite.ID,
		&invite.PublicID,
		&invite.OrgID,
		&invite.Email,
		&invite.ExpiresAt,
		&invite.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteInvalid
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	// The invited user and owning org were verified at generation;
	// their absence here is an invariant violation, not a user error.
	var userID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, invite.Email).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invited user %q no longer exists", invite.Email)
		}
		return nil, fmt.Errorf("failed to load invited user: %w", err)
	}

	var orgExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orgs WHERE id = $1)`, invite.OrgID).Scan(&orgExists); err != nil {
		return nil, fmt.Errorf("failed to check organisation: %w", err)
	}
	if !orgExists {
		return nil, fmt.Errorf("inviting organisation no longer exists")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO org_memberships (org_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (org_id, user_id) DO NOTHING
	`, invite.OrgID, userID); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &Acceptance{
		InvitePublicID: invite.PublicID,
		OrgID:          invite.OrgID,
		UserID:         userID,
		Email:          invite.Email,
	}, nil
}

// PurgeExpired deletes invitations past their expiry. Safe to run
// repeatedly; returns the number of rows removed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM invites
		WHERE expires_at <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired invites: %w", err)
	}
	return tag.RowsAffected(), nil
}
