package models

import (
	"time"
)

// User is a directory entry: an authenticated principal and the role they
// currently hold. Role holders are resolved from this directory when a form
// advances to their stage.
type User struct {
	ID          string    `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	Role        Role      `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Principal is the authenticated identity attached to each request by the
// auth middleware. The core trusts these fields as given.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}
