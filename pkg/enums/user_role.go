package enums

import "fmt"

// UserRole is the system-wide role carried in access tokens.
type UserRole string

const (
	UserRoleAdministrator UserRole = "administrator"
	UserRoleWorker        UserRole = "worker"
	UserRoleStudent       UserRole = "student"
)

var validUserRoles = []UserRole{
	UserRoleAdministrator,
	UserRoleWorker,
	UserRoleStudent,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role may operate loans on behalf of others.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdministrator || r == UserRoleWorker
}

// ParseUserRole converts raw input into UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
