package model

import "time"

// User represents a row in the `users` table.  PasswordHash holds the
// bcrypt digest and carries a "-" json tag so that no handler can ever
// serialize it, whichever read path produced the record.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  Email        – unique email address.
//  Phone        – optional phone number.
//  Avatar       – optional avatar URL.
//  PasswordHash – bcrypt hashed password.
//  RoleID       – foreign key into the roles table.
//  Role         – the joined role, populated only by reads that join roles.
type User struct {
	ID           uint64    `json:"id"`           // users.id
	Username     string    `json:"username"`     // users.username
	Email        string    `json:"email"`        // users.email
	Phone        *string   `json:"phone"`        // users.phone (nullable)
	Avatar       *string   `json:"avatar"`       // users.avatar (nullable)
	PasswordHash string    `json:"-"`            // users.password
	RoleID       uint64    `json:"role_id"`      // users.role_id (references roles.id)
	Role         *Role     `json:"role,omitempty"`
	CreatedAt    time.Time `json:"createdAt"` // users.created_at
	UpdatedAt    time.Time `json:"updatedAt"` // users.updated_at
}

// UserFilter narrows a user listing.  Empty fields are ignored; non-empty
// fields are matched with a substring (LIKE) comparison.
type UserFilter struct {
	Username string
	Email    string
	Phone    string
}
