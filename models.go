package auth

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RolePatient is a patient (patient screens, own bundles)
	RolePatient UserRole = "patient"
	// RoleTherapist is a therapist (therapist screens, patient management)
	RoleTherapist UserRole = "therapist"
)

// ProviderSession is the raw session reported by the identity provider
type ProviderSession struct {
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Token         string     `json:"token,omitempty"`
	IssuedAt      *time.Time `json:"issued_at,omitempty"`
}

// Profile is the application record stored in the users collection
type Profile struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            string     `bun:"id,pk" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	Email         string     `bun:"email,notnull" json:"email"`
	EmailVerified bool       `bun:"email_verified,notnull" json:"email_verified"`
	Role          UserRole   `bun:"role,notnull" json:"role"`
	TherapistID   string     `bun:"therapist_id" json:"therapist_id,omitempty"`
	AvatarURL     string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// User is the unified view of a provider session and its profile
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name,omitempty"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Role          UserRole  `json:"role"`
	TherapistID   string    `json:"therapist_id,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToUser merges the profile with the live session. Identity fields (id,
// email, verification) come from the session, the rest from the profile.
func (p *Profile) ToUser(session *ProviderSession) *User {
	if p == nil {
		return nil
	}

	u := &User{
		ID:            p.ID,
		Name:          p.Name,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Role:          p.Role,
		TherapistID:   p.TherapistID,
		AvatarURL:     p.AvatarURL,
	}

	if p.CreatedAt != nil {
		u.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		u.UpdatedAt = *p.UpdatedAt
	}

	if session != nil {
		u.ID = session.UserID
		if session.Email != "" {
			u.Email = session.Email
		}
		u.EmailVerified = session.EmailVerified || p.EmailVerified
	}

	return u
}

// Label returns the name we show in headers
func (u *User) Label() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return u.Email
}

// Clone returns a copy safe to hand to observers
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
