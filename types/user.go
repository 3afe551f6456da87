package types

import "time"

const (
	// RoleCustomer is the default role granted at registration.
	RoleCustomer = "customer"

	// RoleAdmin may manage the product catalog.
	RoleAdmin = "admin"
)

// User represents an account in the storefront.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is stored lowercased and is
	// unique across all users.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the storefront
	// (either "customer" or "admin").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}
