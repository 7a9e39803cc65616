// Package config loads application settings from CARE_ prefixed
// environment variables.
package config

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/kelseyhightower/envconfig"

	auth "github.com/carebridge/go-care-auth"
	"github.com/carebridge/go-care-auth/blob"
	"github.com/carebridge/go-care-auth/email"
)

// Prefix of every environment variable
const Prefix = "CARE"

type App struct {
	// Database
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"file:care.db?cache=shared&_pragma=foreign_keys(1)"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// Tokens
	SigningKey             string        `envconfig:"SIGNING_KEY" required:"true"`
	TokenExpiration        int           `envconfig:"TOKEN_EXPIRATION_HOURS" default:"24"`
	VerificationExpiration int           `envconfig:"VERIFICATION_EXPIRATION_HOURS" default:"24"`
	Issuer                 string        `envconfig:"ISSUER" default:"carebridge"`
	Audience               []string      `envconfig:"AUDIENCE" default:"carebridge-app"`
	VerificationURL        string        `envconfig:"VERIFICATION_URL" default:"http://localhost:8081/verify-email"`
	MaxLoginAttempts       int           `envconfig:"MAX_LOGIN_ATTEMPTS" default:"5"`
	LockoutPeriod          time.Duration `envconfig:"LOCKOUT_PERIOD" default:"15m"`
	HashIDs                bool          `envconfig:"HASH_IDS" default:"false"`

	// Notifications, in-process bus when empty
	RedisURL string `envconfig:"REDIS_URL"`

	// Avatars, in-memory store when the endpoint is empty
	MinioEndpoint  string        `envconfig:"MINIO_ENDPOINT"`
	MinioAccessKey string        `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string        `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string        `envconfig:"MINIO_BUCKET" default:"avatars"`
	MinioRegion    string        `envconfig:"MINIO_REGION" default:"us-east-1"`
	MinioUseSSL    bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	MinioURLExpiry time.Duration `envconfig:"MINIO_URL_EXPIRY" default:"168h"`

	// SMTP, links are logged when the host is empty
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPFromName string `envconfig:"SMTP_FROM_NAME" default:"CareBridge"`
}

var _ auth.Config = App{}

// Load reads the environment
func Load() (App, error) {
	var c App
	if err := envconfig.Process(Prefix, &c); err != nil {
		return c, errors.Wrap(err, errors.CategoryBadInput, "failed to load configuration")
	}
	return c, nil
}

func (c App) GetSigningKey() string          { return c.SigningKey }
func (c App) GetTokenExpiration() int        { return c.TokenExpiration }
func (c App) GetVerificationExpiration() int { return c.VerificationExpiration }
func (c App) GetIssuer() string              { return c.Issuer }
func (c App) GetAudience() []string          { return c.Audience }
func (c App) GetVerificationURL() string     { return c.VerificationURL }
func (c App) GetMaxLoginAttempts() int       { return c.MaxLoginAttempts }

// UsesMinio reports whether avatars go to an object store
func (c App) UsesMinio() bool {
	return c.MinioEndpoint != ""
}

// Minio returns the object store settings
func (c App) Minio() blob.MinioConfig {
	return blob.MinioConfig{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		Bucket:    c.MinioBucket,
		Region:    c.MinioRegion,
		UseSSL:    c.MinioUseSSL,
		URLExpiry: c.MinioURLExpiry,
	}
}

// SMTP returns the mailer settings
func (c App) SMTP() email.Config {
	return email.Config{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
		FromName: c.SMTPFromName,
	}
}
