package permissions

import (
	"time"

	"github.com/google/uuid"
)

// Permission is an entry in the global permission catalog. Permissions
// are shared across all organisations and referenced by id.
type Permission struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
