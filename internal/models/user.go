package models

import "github.com/lib/pq"

// UserRole represents a role a user holds. A user may hold several.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "STAFF"
	RoleStudent    UserRole = "STUDENT"
)

// User is the slice of the user directory the reconcilers need.
type User struct {
	ID       string         `db:"id" json:"id"`
	FullName string         `db:"full_name" json:"full_name"`
	Roles    pq.StringArray `db:"roles" json:"roles"`
}

// HasRole reports whether role is in the user's role set.
func (u User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if UserRole(r) == role {
			return true
		}
	}
	return false
}

// IsStudent reports student membership.
func (u User) IsStudent() bool { return u.HasRole(RoleStudent) }

// IsStaff reports staff membership.
func (u User) IsStaff() bool { return u.HasRole(RoleStaff) }
