// Package local is a self hosted identity provider. Credentials live in the
// auth_accounts table, sessions are signed JWTs, and verification links are
// delivered through a Mailer.
package local

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/carebridge/go-care-auth"
)

// DefaultLockout is how long an account stays locked once it reaches the
// maximum number of failed attempts
const DefaultLockout = 15 * time.Minute

// Mailer delivers verification links
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
}

// MailerFunc adapts a function to Mailer
type MailerFunc func(ctx context.Context, to, link string) error

// SendVerification implements Mailer
func (f MailerFunc) SendVerification(ctx context.Context, to, link string) error {
	return f(ctx, to, link)
}

type logMailer struct {
	logger auth.Logger
}

func (m logMailer) SendVerification(_ context.Context, to, link string) error {
	m.logger.Info("verification link for %s: %s", to, link)
	return nil
}

// Provider implements auth.IdentityProvider over a bun database. It holds a
// single current session, like a client SDK would.
type Provider struct {
	accounts        Accounts
	tokens          *tokens
	mailer          Mailer
	logger          auth.Logger
	now             func() time.Time
	verificationURL string
	maxAttempts     int
	lockout         time.Duration
	useHashID       bool

	mu        sync.Mutex
	current   *auth.ProviderSession
	listeners map[uint64]auth.SessionListener
	nextID    uint64
}

var _ auth.IdentityProvider = (*Provider)(nil)

// Option configures the provider
type Option func(*Provider)

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMailer sets the verification mailer. Without one links are logged.
func WithMailer(m Mailer) Option {
	return func(p *Provider) {
		if m != nil {
			p.mailer = m
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithLockout sets how long a locked account cools down
func WithLockout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.lockout = d
		}
	}
}

// WithHashIDs derives account ids from the email address
func WithHashIDs(enabled bool) Option {
	return func(p *Provider) {
		p.useHashID = enabled
	}
}

// WithAccounts replaces the accounts repository
func WithAccounts(accounts Accounts) Option {
	return func(p *Provider) {
		if accounts != nil {
			p.accounts = accounts
		}
	}
}

// NewProvider creates a provider storing accounts in db
func NewProvider(db *bun.DB, cfg auth.Config, opts ...Option) (*Provider, error) {
	if cfg == nil || strings.TrimSpace(cfg.GetSigningKey()) == "" {
		return nil, errors.New("signing key is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	p := &Provider{
		logger:          auth.DefaultLogger(),
		now:             time.Now,
		verificationURL: cfg.GetVerificationURL(),
		maxAttempts:     cfg.GetMaxLoginAttempts(),
		lockout:         DefaultLockout,
		listeners:       map[uint64]auth.SessionListener{},
	}
	if db != nil {
		p.accounts = NewAccountsRepository(db)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.accounts == nil {
		return nil, errors.New("accounts repository is required", errors.CategoryBadInput)
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 5
	}
	if p.mailer == nil {
		p.mailer = logMailer{logger: p.logger}
	}

	p.tokens = &tokens{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		audience:   jwt.ClaimStrings(cfg.GetAudience()),
		sessionTTL: hours(cfg.GetTokenExpiration(), 24),
		verifyTTL:  hours(cfg.GetVerificationExpiration(), 24),
		now:        func() time.Time { return p.now() },
		newID:      uuid.NewString,
	}

	return p, nil
}

func hours(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Hour
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return auth.ErrInvalidEmail
	}
	return nil
}

// SignInWithPassword checks the credentials and makes the account the
// current session. Accounts reaching the attempt limit are locked out.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	if account.Locked(now) {
		return nil, auth.ErrTooManyRequests
	}

	if err := auth.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		var lockUntil *time.Time
		if account.FailedAttempts+1 >= p.maxAttempts {
			until := now.Add(p.lockout)
			lockUntil = &until
		}

		if trackErr := p.accounts.TrackFailedAttempt(ctx, account, lockUntil); trackErr != nil {
			p.logger.Error("failed to track login attempt for %s: %v", account.ID, trackErr)
		}

		if lockUntil != nil {
			p.logger.Warn("account %s locked until %s", account.ID, lockUntil.Format(time.RFC3339))
			return nil, auth.ErrTooManyRequests
		}
		return nil, auth.ErrWrongPassword
	}

	if err := p.accounts.TrackSuccessfulLogin(ctx, account, now); err != nil {
		p.logger.Error("failed to track successful login for %s: %v", account.ID, err)
	}

	return p.startSession(account)
}

// CreateAccount registers the credentials and signs the new account in
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if _, err := p.accounts.GetByEmail(ctx, email); err == nil {
		return nil, auth.ErrEmailInUse
	} else if !auth.HasTextCode(err, auth.TextCodeUserNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, errors.Wrap(richErr, errors.CategoryValidation, "invalid password provided")
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	now := p.now().UTC()
	account := &Account{
		ID:           p.accountID(email),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}

	if err := p.accounts.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	return p.startSession(account)
}

func (p *Provider) accountID(email string) string {
	if p.useHashID {
		if id, err := hashid.NewUUID(email); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

// SendVerificationEmail mails a verification link for the session's account
func (p *Provider) SendVerificationEmail(ctx context.Context, session *auth.ProviderSession) error {
	if session == nil || session.UserID == "" {
		return auth.ErrNoActiveSession
	}

	account := &Account{ID: session.UserID, Email: session.Email, EmailVerified: session.EmailVerified}
	token, _, err := p.tokens.issue(account, purposeVerify)
	if err != nil {
		return err
	}

	if err := p.mailer.SendVerification(ctx, session.Email, p.verificationLink(token)); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to send verification email").
			WithMetadata(map[string]any{"user_id": session.UserID})
	}
	return nil
}

func (p *Provider) verificationLink(token string) string {
	base := strings.TrimSpace(p.verificationURL)
	if base == "" {
		return token
	}

	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// VerifyEmail consumes a verification token. When the account is the current
// session, listeners receive the refreshed, verified session.
func (p *Provider) VerifyEmail(ctx context.Context, token string) error {
	claims, err := p.tokens.parse(token, purposeVerify)
	if err != nil {
		return err
	}

	if err := p.accounts.MarkVerified(ctx, claims.UserID(), p.now().UTC()); err != nil {
		return err
	}

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil || current.UserID != claims.UserID() {
		return nil
	}

	_, err = p.startSession(&Account{ID: current.UserID, Email: current.Email, EmailVerified: true})
	return err
}

// RestoreSession makes a previously issued session token current again
func (p *Provider) RestoreSession(ctx context.Context, token string) (*auth.ProviderSession, error) {
	claims, err := p.tokens.parse(token, purposeSession)
	if err != nil {
		return nil, err
	}

	account, err := p.accounts.GetByEmail(ctx, claims.Email)
	if err != nil || account.ID != claims.UserID() {
		return nil, auth.ErrInvalidToken
	}

	return p.startSession(account)
}

// CurrentSession returns a copy of the current session, nil when signed out
func (p *Provider) CurrentSession() *auth.ProviderSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneSession(p.current)
}

// SignOut drops the current session
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	changed := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if changed {
		p.notify(nil)
	}
	return nil
}

// DeleteCurrentAccount removes the signed in account and signs out
func (p *Provider) DeleteCurrentAccount(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil {
		return auth.ErrNoActiveSession
	}

	if err := p.accounts.DeleteAccount(ctx, current.UserID); err != nil {
		return err
	}

	p.mu.Lock()
	if p.current != nil && p.current.UserID == current.UserID {
		p.current = nil
	}
	p.mu.Unlock()

	p.notify(nil)
	return nil
}

// OnSessionChange registers a listener. It is called right away with the
// current session and then after every change.
func (p *Provider) OnSessionChange(listener auth.SessionListener) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	current := cloneSession(p.current)
	p.mu.Unlock()

	listener(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Listeners returns how many listeners are registered
func (p *Provider) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *Provider) startSession(account *Account) (*auth.ProviderSession, error) {
	token, issuedAt, err := p.tokens.issue(account, purposeSession)
	if err != nil {
		return nil, err
	}

	session := account.Session(token, issuedAt)

	p.mu.Lock()
	p.current = session
	p.mu.Unlock()

	p.notify(session)
	return cloneSession(session), nil
}

func (p *Provider) notify(session *auth.ProviderSession) {
	p.mu.Lock()
	listeners := make([]auth.SessionListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(cloneSession(session))
	}
}

func cloneSession(s *auth.ProviderSession) *auth.ProviderSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.IssuedAt != nil {
		t := *s.IssuedAt
		out.IssuedAt = &t
	}
	return &out
}
