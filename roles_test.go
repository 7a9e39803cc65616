package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserRoleIsValid(t *testing.T) {
	assert.True(t, RolePatient.IsValid())
	assert.True(t, RoleTherapist.IsValid())
	assert.False(t, UserRole("admin").IsValid())
	assert.False(t, UserRole("").IsValid())
}

func TestUserRoleHomeRoute(t *testing.T) {
	assert.Equal(t, RoutePatientHome, RolePatient.HomeRoute())
	assert.Equal(t, RouteTherapistHome, RoleTherapist.HomeRoute())
	assert.Equal(t, RoutePatientHome, UserRole("").HomeRoute())
}

func TestUserRoleCanEnter(t *testing.T) {
	cases := []struct {
		role  UserRole
		group RouteGroup
		want  bool
	}{
		{RolePatient, GroupPatient, true},
		{RolePatient, GroupTherapist, false},
		{RoleTherapist, GroupTherapist, true},
		{RoleTherapist, GroupPatient, false},
		{RoleTherapist, GroupNone, true},
		{UserRole("other"), GroupPatient, true},
		{UserRole("other"), GroupTherapist, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, c.role.CanEnter(c.group), "%s in %s", c.role, c.group)
	}
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("therapist")
	assert.True(t, ok)
	assert.Equal(t, RoleTherapist, role)

	_, ok = ParseRole("guest")
	assert.False(t, ok)

	assert.ElementsMatch(t, []UserRole{RolePatient, RoleTherapist}, GetAllRoles())
}
