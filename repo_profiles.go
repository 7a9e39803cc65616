package auth

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles is the bun backed users collection
type Profiles interface {
	repository.Repository[*Profile]
	ProfileStore

	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)
	SetProfileTx(ctx context.Context, tx bun.IDB, profile *Profile) error
	DeleteProfileTx(ctx context.Context, tx bun.IDB, id string) error
}

type profiles struct {
	repository.Repository[*Profile]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ ProfileStore                    = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

// ProfilesOption customizes the repository
type ProfilesOption func(*profiles)

// WithProfilesClock injects a custom clock (useful for tests).
func WithProfilesClock(clock func() time.Time) ProfilesOption {
	return func(p *profiles) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewProfilesRepository returns the users collection backed by db
func NewProfilesRepository(db *bun.DB, opts ...ProfilesOption) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			id, err := uuid.Parse(p.ID)
			if err != nil {
				return uuid.Nil
			}
			return id
		},
		SetID: func(p *Profile, id uuid.UUID) {
			// provider ids are not always UUIDs, never overwrite one
			if p != nil && p.ID == "" {
				p.ID = id.String()
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	r := &profiles{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func (p *profiles) GetProfile(ctx context.Context, id string) (*Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrProfileNotFound
	}

	record := &Profile{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) || isNoRows(err) {
			return nil, ErrProfileNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch profile")
	}

	return record, nil
}

// GetProfileByEmail looks the profile up by its identifier column
func (p *profiles) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	record, err := p.Repository.GetByIdentifier(ctx, strings.TrimSpace(email))
	if err != nil {
		if repository.IsRecordNotFound(err) || isNoRows(err) {
			return nil, ErrProfileNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch profile by email")
	}
	return record, nil
}

func (p *profiles) SetProfile(ctx context.Context, profile *Profile) error {
	return p.SetProfileTx(ctx, p.db, profile)
}

// SetProfileTx writes the whole record, creating it when missing
func (p *profiles) SetProfileTx(ctx context.Context, tx bun.IDB, profile *Profile) error {
	if profile == nil || strings.TrimSpace(profile.ID) == "" {
		return errors.New("profile id is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	now := p.now()
	profile.UpdatedAt = &now
	if profile.CreatedAt == nil {
		profile.CreatedAt = &now
	}

	_, err := tx.NewInsert().
		Model(profile).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("display_name = EXCLUDED.display_name").
		Set("email = EXCLUDED.email").
		Set("email_verified = EXCLUDED.email_verified").
		Set("role = EXCLUDED.role").
		Set("therapist_id = EXCLUDED.therapist_id").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write profile")
	}

	return nil
}

func (p *profiles) DeleteProfile(ctx context.Context, id string) error {
	return p.DeleteProfileTx(ctx, p.db, id)
}

// DeleteProfileTx removes the record, missing records are not an error
func (p *profiles) DeleteProfileTx(ctx context.Context, tx bun.IDB, id string) error {
	_, err := tx.NewDelete().
		Model((*Profile)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete profile")
	}
	return nil
}

func isNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}
