package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	auth "github.com/carebridge/go-care-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupProfilesDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	_, err = auth.Migrate(context.Background(), bunDB)
	require.NoError(t, err)

	return bunDB
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	bunDB := bun.NewDB(db, sqlitedialect.New())
	defer bunDB.Close()

	ctx := context.Background()

	applied, err := auth.Migrate(ctx, bunDB)
	require.NoError(t, err)
	assert.Len(t, applied, 3)

	applied, err = auth.Migrate(ctx, bunDB)
	require.NoError(t, err)
	assert.Empty(t, applied)

	for _, table := range []string{"users", "notifications", "auth_accounts"} {
		var count int
		err := bunDB.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, table)
	}
}

func TestProfilesRepository(t *testing.T) {
	ctx := context.Background()
	bunDB := setupProfilesDB(t)

	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	repo := auth.NewProfilesRepository(bunDB, auth.WithProfilesClock(func() time.Time { return now }))

	t.Run("missing profile", func(t *testing.T) {
		_, err := repo.GetProfile(ctx, "nobody")
		assert.ErrorIs(t, err, auth.ErrProfileNotFound)
		assert.True(t, auth.IsProfileNotFound(err))

		_, err = repo.GetProfile(ctx, "  ")
		assert.ErrorIs(t, err, auth.ErrProfileNotFound)
	})

	t.Run("create and read", func(t *testing.T) {
		err := repo.SetProfile(ctx, &auth.Profile{
			ID:    "prov-123",
			Name:  "Pat",
			Email: "pat@example.com",
			Role:  auth.RolePatient,
		})
		require.NoError(t, err)

		got, err := repo.GetProfile(ctx, "prov-123")
		require.NoError(t, err)
		assert.Equal(t, "Pat", got.Name)
		assert.Equal(t, auth.RolePatient, got.Role)
		assert.False(t, got.EmailVerified)
		require.NotNil(t, got.CreatedAt)
		assert.True(t, now.Equal(got.CreatedAt.UTC()))

		byEmail, err := repo.GetProfileByEmail(ctx, "pat@example.com")
		require.NoError(t, err)
		assert.Equal(t, "prov-123", byEmail.ID)
	})

	t.Run("set overwrites fields", func(t *testing.T) {
		now = now.Add(time.Hour)
		err := repo.SetProfile(ctx, &auth.Profile{
			ID:            "prov-123",
			Name:          "Pat",
			Email:         "pat@example.com",
			EmailVerified: true,
			Role:          auth.RolePatient,
			TherapistID:   "t-1",
			AvatarURL:     "https://cdn.test/a.png",
		})
		require.NoError(t, err)

		got, err := repo.GetProfile(ctx, "prov-123")
		require.NoError(t, err)
		assert.True(t, got.EmailVerified)
		assert.Equal(t, "t-1", got.TherapistID)
		assert.Equal(t, "https://cdn.test/a.png", got.AvatarURL)
		require.NotNil(t, got.UpdatedAt)
		assert.True(t, now.Equal(got.UpdatedAt.UTC()))
		require.NotNil(t, got.CreatedAt)
		assert.True(t, now.Add(-time.Hour).Equal(got.CreatedAt.UTC()), "created_at survives updates")
	})

	t.Run("requires id", func(t *testing.T) {
		assert.Error(t, repo.SetProfile(ctx, &auth.Profile{Name: "x"}))
		assert.Error(t, repo.SetProfile(ctx, nil))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteProfile(ctx, "prov-123"))
		_, err := repo.GetProfile(ctx, "prov-123")
		assert.ErrorIs(t, err, auth.ErrProfileNotFound)

		require.NoError(t, repo.DeleteProfile(ctx, "prov-123"))
	})
}

func TestProfileResolverWithRepository(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewProfilesRepository(setupProfilesDB(t))

	require.NoError(t, repo.SetProfile(ctx, &auth.Profile{
		ID: "t-9", Name: "Dr Nine", Email: "nine@example.com", Role: auth.RoleTherapist,
	}))

	resolver := auth.NewProfileResolver(repo)

	user, err := resolver.Resolve(ctx, &auth.ProviderSession{UserID: "t-9", Email: "nine@example.com", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleTherapist, user.Role)
	assert.True(t, user.EmailVerified)

	stored, err := repo.GetProfile(ctx, "t-9")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified, "verified session marks the profile verified")

	_, err = resolver.Resolve(ctx, &auth.ProviderSession{UserID: "ghost"})
	assert.ErrorIs(t, err, auth.ErrProfileNotFound)

	_, err = resolver.Resolve(ctx, nil)
	assert.ErrorIs(t, err, auth.ErrNoActiveSession)
}
