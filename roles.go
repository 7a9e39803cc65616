package auth

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RolePatient, RoleTherapist:
		return true
	default:
		return false
	}
}

// HomeRoute is where the role lands after authentication
func (r UserRole) HomeRoute() string {
	switch r {
	case RoleTherapist:
		return RouteTherapistHome
	default:
		return RoutePatientHome
	}
}

// CanEnter checks if the role may stay inside a route group. Unknown roles
// are treated like patients, matching HomeRoute.
func (r UserRole) CanEnter(group RouteGroup) bool {
	switch group {
	case GroupTherapist:
		return r == RoleTherapist
	case GroupPatient:
		return r != RoleTherapist
	default:
		return true
	}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RolePatient,
		RoleTherapist,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
