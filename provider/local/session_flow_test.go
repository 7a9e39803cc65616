package local_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/carebridge/go-care-auth"
)

func TestSessionStoreOverLocalProvider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	profiles := auth.NewProfilesRepository(f.db)

	store := auth.NewSessionStore(f.provider, profiles, auth.WithStoreLogger(auth.NopLogger{}))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Start(ctx))
	assert.Equal(t, auth.StatusUnauthenticated, store.State().Status())

	ok, err := store.SignUp(ctx, "pat@example.com", "secret1", "Pat", auth.RolePatient)
	require.NoError(t, err)
	require.True(t, ok)

	state := store.State()
	assert.Equal(t, auth.StatusPendingVerification, state.Status())
	assert.Nil(t, state.User, "unverified session is never exposed")
	target, redirect := auth.EvaluateGuard(state, []string{"(patient)"})
	assert.True(t, redirect)
	assert.Equal(t, auth.RouteVerifyEmail, target)

	profile, err := profiles.GetProfileByEmail(ctx, "pat@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RolePatient, profile.Role)

	require.NoError(t, f.provider.VerifyEmail(ctx, f.outbox.Token(t, "pat@example.com")))

	state = store.State()
	require.NotNil(t, state.User)
	assert.True(t, state.User.EmailVerified)
	assert.Equal(t, "Pat", state.User.Name)

	stored, err := profiles.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	store.SetPendingVerification(false)
	state = store.State()
	assert.Equal(t, auth.StatusAuthenticated, state.Status())
	target, redirect = auth.EvaluateGuard(state, []string{"(auth)", "login"})
	assert.True(t, redirect)
	assert.Equal(t, auth.RoutePatientHome, target)

	require.NoError(t, store.SignOut(ctx))
	assert.Equal(t, auth.StatusUnauthenticated, store.State().Status())

	require.NoError(t, store.SignIn(ctx, "pat@example.com", "secret1"))
	state = store.State()
	require.NotNil(t, state.User)
	assert.Equal(t, profile.ID, state.User.ID)

	require.NoError(t, store.DeleteAccount(ctx))
	assert.Nil(t, store.State().User)

	_, err = profiles.GetProfile(ctx, profile.ID)
	assert.True(t, auth.IsProfileNotFound(err))

	err = store.SignIn(ctx, "pat@example.com", "secret1")
	assert.Equal(t, auth.CredentialUserNotFound, auth.ClassifyCredentialError(err))
	assert.Equal(t, auth.CredentialUserNotFound, store.State().ErrorKind)
}

func TestSessionStoreDropsOrphanedLocalSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.provider.CreateAccount(ctx, "ghost@example.com", "secret1")
	require.NoError(t, err)

	store := auth.NewSessionStore(f.provider, auth.NewProfilesRepository(f.db), auth.WithStoreLogger(auth.NopLogger{}))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Start(ctx))

	assert.Nil(t, store.State().User)
	assert.Nil(t, f.provider.CurrentSession(), "orphaned session is signed out at the provider")
}
