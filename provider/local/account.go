package local

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/carebridge/go-care-auth"
)

// Account is a credential record in auth_accounts
type Account struct {
	bun.BaseModel  `bun:"table:auth_accounts,alias:acc"`
	ID             string     `bun:"id,pk" json:"id"`
	Email          string     `bun:"email,notnull" json:"email"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	EmailVerified  bool       `bun:"email_verified,notnull" json:"email_verified"`
	FailedAttempts int        `bun:"failed_attempts,notnull" json:"failed_attempts"`
	LockedUntil    *time.Time `bun:"locked_until,nullzero" json:"locked_until,omitempty"`
	LastLoginAt    *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	VerifiedAt     *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Locked reports whether the account is cooling down at t
func (a *Account) Locked(t time.Time) bool {
	return a != nil && a.LockedUntil != nil && a.LockedUntil.After(t)
}

// Session builds the provider session for the account
func (a *Account) Session(token string, issuedAt time.Time) *auth.ProviderSession {
	return &auth.ProviderSession{
		UserID:        a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		Token:         token,
		IssuedAt:      &issuedAt,
	}
}

// Accounts is the auth_accounts table
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	TrackFailedAttempt(ctx context.Context, account *Account, lockUntil *time.Time) error
	TrackSuccessfulLogin(ctx context.Context, account *Account, at time.Time) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
	DeleteAccount(ctx context.Context, id string) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository returns the accounts table backed by db
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			id, err := uuid.Parse(a.ID)
			if err != nil {
				return uuid.Nil
			}
			return id
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil && a.ID == "" {
				a.ID = id.String()
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{Repository: repo, db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	record, err := r.Repository.GetByIdentifier(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return nil, auth.ErrUserNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch account")
	}
	return record, nil
}

func (r *accounts) CreateAccount(ctx context.Context, account *Account) error {
	account.Email = normalizeEmail(account.Email)
	if _, err := r.db.NewInsert().Model(account).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailInUse
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to create account")
	}
	return nil
}

func (r *accounts) TrackFailedAttempt(ctx context.Context, account *Account, lockUntil *time.Time) error {
	attempts := account.FailedAttempts + 1
	if lockUntil != nil {
		attempts = 0
	}

	_, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("failed_attempts = ?", attempts).
		Set("locked_until = ?", lockUntil).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track login attempt")
	}

	account.FailedAttempts = attempts
	account.LockedUntil = lockUntil
	return nil
}

func (r *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("failed_attempts = 0").
		Set("locked_until = NULL").
		Set("last_login_at = ?", at).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track login")
	}

	account.FailedAttempts = 0
	account.LockedUntil = nil
	account.LastLoginAt = &at
	return nil
}

func (r *accounts) MarkVerified(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("email_verified = ?", true).
		Set("verified_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to verify account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (r *accounts) DeleteAccount(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*Account)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete account")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
