package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	auth "github.com/carebridge/go-care-auth"
)

const (
	purposeSession = "session"
	purposeVerify  = "verify_email"
)

// Claims is the payload of session and verification tokens
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	Verified bool   `json:"email_verified"`
	Purpose  string `json:"purpose"`
}

// UserID returns the account id
func (c *Claims) UserID() string {
	return c.Subject
}

type tokens struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	sessionTTL time.Duration
	verifyTTL  time.Duration
	now        func() time.Time
	newID      func() string
}

func (t *tokens) ttl(purpose string) time.Duration {
	if purpose == purposeVerify {
		return t.verifyTTL
	}
	return t.sessionTTL
}

func (t *tokens) issue(account *Account, purpose string) (string, time.Time, error) {
	now := t.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        t.newID(),
			Issuer:    t.issuer,
			Subject:   account.ID,
			Audience:  t.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl(purpose))),
		},
		Email:    account.Email,
		Verified: account.EmailVerified,
		Purpose:  purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}
	return signed, now, nil
}

func (t *tokens) parse(tokenString, purpose string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(t.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if t.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(t.issuer))
	}
	if len(t.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(t.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(tk *jwt.Token) (any, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tk.Header["alg"])
		}
		return t.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, errors.Wrap(err, auth.ErrInvalidToken.Category, auth.ErrInvalidToken.Message).
			WithTextCode(auth.ErrInvalidToken.TextCode).
			WithCode(auth.ErrInvalidToken.Code)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Purpose != purpose || claims.Subject == "" {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}
