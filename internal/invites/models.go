package invites

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInviteInvalid is returned when a token matches no currently
	// valid invitation. Unknown and expired tokens are deliberately
	// indistinguishable to the caller.
	ErrInviteInvalid = errors.New("invalid or expired invitation link")

	// ErrExpiryNotFuture is returned when the requested expiry is not
	// strictly in the future
	ErrExpiryNotFuture = errors.New("expiry must be in the future")

	// ErrTokenCollision is returned when token generation exhausted its retries
	ErrTokenCollision = errors.New("invite token collision retry exhausted")
)

// Invite is an invitation scoped to one organisation. PublicID is the
// external-facing identifier returned to callers; the raw token is never stored.
type Invite struct {
	ID        uuid.UUID `db:"id"`
	PublicID  uuid.UUID `db:"public_id"`
	OrgID     uuid.UUID `db:"org_id"`
	Email     string    `db:"email"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Acceptance describes the membership granted by a redeemed invitation.
type Acceptance struct {
	InvitePublicID uuid.UUID
	OrgID          uuid.UUID
	UserID         uuid.UUID
	Email          string
}
