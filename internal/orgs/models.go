package orgs

import (
	"time"

	"github.com/google/uuid"
)

// Org represents an organisation. OrgID is the opaque external-facing
// identifier; ID is the internal primary key.
type Org struct {
	ID          uuid.UUID `db:"id"`
	OrgID       string    `db:"org_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Membership represents a user's membership in an organisation
type Membership struct {
	OrgID     uuid.UUID `db:"org_id"`
	UserID    uuid.UUID `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// MemberInfo represents a member of an organisation with their details
type MemberInfo struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
