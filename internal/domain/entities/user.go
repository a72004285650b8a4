package entities

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated principal. Users own accounts and initiate
// transfers.
type User struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
