package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account that can be invited into organisations and
// hold roles across them.
type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
