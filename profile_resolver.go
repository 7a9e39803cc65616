package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// ProfileResolver turns a provider session into a User
type ProfileResolver struct {
	profiles ProfileStore
	logger   Logger
}

// NewProfileResolver returns a resolver reading from profiles
func NewProfileResolver(profiles ProfileStore) *ProfileResolver {
	return &ProfileResolver{profiles: profiles, logger: NopLogger{}}
}

// Resolve fetches the profile keyed by the session id and merges it.
// A missing record is reported as ErrProfileNotFound. A profile still
// marked unverified for a verified session is updated in place; a failed
// write is logged and the user is returned anyway.
func (r *ProfileResolver) Resolve(ctx context.Context, session *ProviderSession) (*User, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrNoActiveSession
	}

	profile, err := r.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		if IsProfileNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryExternal, "failed to resolve profile")
	}

	if profile == nil {
		return nil, ErrProfileNotFound
	}

	if session.EmailVerified && !profile.EmailVerified {
		synced := *profile
		synced.EmailVerified = true
		if err := r.profiles.SetProfile(ctx, &synced); err != nil {
			r.logger.Warn("mark profile %s verified failed: %v", profile.ID, err)
		} else {
			profile = &synced
		}
	}

	return profile.ToUser(session), nil
}
