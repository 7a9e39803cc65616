package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/go-care-auth/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CARE_SIGNING_KEY", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.GetSigningKey())
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, 24, cfg.GetVerificationExpiration())
	assert.Equal(t, "carebridge", cfg.GetIssuer())
	assert.Equal(t, []string{"carebridge-app"}, cfg.GetAudience())
	assert.Equal(t, 5, cfg.GetMaxLoginAttempts())
	assert.Equal(t, 15*time.Minute, cfg.LockoutPeriod)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.UsesMinio())
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.SMTP().Configured())
}

func TestLoadRequiresSigningKey(t *testing.T) {
	// restored after the test
	t.Setenv("CARE_SIGNING_KEY", "")
	require.NoError(t, os.Unsetenv("CARE_SIGNING_KEY"))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CARE_SIGNING_KEY", "secret")
	t.Setenv("CARE_AUDIENCE", "mobile,web")
	t.Setenv("CARE_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("CARE_LOCKOUT_PERIOD", "1h")
	t.Setenv("CARE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CARE_MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("CARE_MINIO_ACCESS_KEY", "minio")
	t.Setenv("CARE_MINIO_SECRET_KEY", "minio123")
	t.Setenv("CARE_MINIO_URL_EXPIRY", "1h")
	t.Setenv("CARE_SMTP_HOST", "smtp.test")
	t.Setenv("CARE_SMTP_FROM", "no-reply@care.test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"mobile", "web"}, cfg.GetAudience())
	assert.Equal(t, 3, cfg.GetMaxLoginAttempts())
	assert.Equal(t, time.Hour, cfg.LockoutPeriod)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)

	require.True(t, cfg.UsesMinio())
	minio := cfg.Minio()
	assert.Equal(t, "localhost:9000", minio.Endpoint)
	assert.Equal(t, "avatars", minio.Bucket)
	assert.Equal(t, "us-east-1", minio.Region)
	assert.Equal(t, time.Hour, minio.URLExpiry)

	smtp := cfg.SMTP()
	assert.True(t, smtp.Configured())
	assert.Equal(t, "587", smtp.Port)
	assert.Equal(t, "CareBridge", smtp.FromName)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CARE_SIGNING_KEY", "secret")
	t.Setenv("CARE_MAX_LOGIN_ATTEMPTS", "many")

	_, err := config.Load()
	assert.Error(t, err)
}
