package entities

import (
	"fmt"
	"time"
)

// User owns transactions. Users are created on the fly during CSV import.
type User struct {
	ID        int64     `json:"id"         db:"id"`
	Username  string    `json:"username"   db:"username"`
	Email     string    `json:"email"      db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPlaceholderUser builds the user record created for an unseen user id.
func NewPlaceholderUser(id int64) User {
	return User{
		ID:       id,
		Username: fmt.Sprintf("user%d", id),
		Email:    fmt.Sprintf("user%d@example.com", id),
	}
}
