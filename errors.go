package auth

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound    = "auth/user-not-found"
	TextCodeWrongPassword   = "auth/wrong-password"
	TextCodeInvalidEmail    = "auth/invalid-email"
	TextCodeTooManyRequests = "auth/too-many-requests"
	TextCodeEmailInUse      = "auth/email-already-in-use"
	TextCodeProfileNotFound = "auth/profile-not-found"
	TextCodeNoActiveSession = "auth/no-active-session"
	TextCodeInvalidSignUp   = "auth/invalid-sign-up"
	TextCodeStoreClosed     = "auth/session-store-closed"
	TextCodeInvalidToken    = "auth/invalid-token"
)

// ErrUserNotFound no account exists for the identifier
var ErrUserNotFound = errors.New("no account found for this email", errors.CategoryAuth).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrWrongPassword credentials do not match
var ErrWrongPassword = errors.New("incorrect password", errors.CategoryAuth).
	WithTextCode(TextCodeWrongPassword).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidEmail email is malformed
var ErrInvalidEmail = errors.New("invalid email address", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(errors.CodeBadRequest)

// ErrTooManyRequests account is cooling down after failed attempts
var ErrTooManyRequests = errors.New("too many attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyRequests).
	WithCode(429)

// ErrEmailInUse an account already exists for the email
var ErrEmailInUse = errors.New("email already in use", errors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(errors.CodeConflict)

// ErrProfileNotFound the session has no matching users record
var ErrProfileNotFound = errors.New("profile not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(errors.CodeNotFound)

// ErrNoActiveSession operation requires a signed in user
var ErrNoActiveSession = errors.New("no active session", errors.CategoryAuth).
	WithTextCode(TextCodeNoActiveSession).
	WithCode(errors.CodeUnauthorized)

// ErrStoreClosed the session store was closed
var ErrStoreClosed = errors.New("session store closed", errors.CategoryOperation).
	WithTextCode(TextCodeStoreClosed)

// ErrInvalidToken token could not be validated
var ErrInvalidToken = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// CredentialErrorKind groups provider failures into what we tell the user
type CredentialErrorKind string

const (
	CredentialUserNotFound    CredentialErrorKind = "user-not-found"
	CredentialWrongPassword   CredentialErrorKind = "wrong-password"
	CredentialInvalidEmail    CredentialErrorKind = "invalid-email"
	CredentialTooManyRequests CredentialErrorKind = "too-many-requests"
	CredentialUnknown         CredentialErrorKind = "unknown"
)

var credentialMessages = map[CredentialErrorKind]string{
	CredentialUserNotFound:    "No account found with this email.",
	CredentialWrongPassword:   "Incorrect password. Please try again.",
	CredentialInvalidEmail:    "Please enter a valid email address.",
	CredentialTooManyRequests: "Too many failed attempts. Please try again later.",
	CredentialUnknown:         "Something went wrong. Please try again.",
}

var textCodeKinds = map[string]CredentialErrorKind{
	TextCodeUserNotFound:    CredentialUserNotFound,
	TextCodeWrongPassword:   CredentialWrongPassword,
	TextCodeInvalidEmail:    CredentialInvalidEmail,
	TextCodeTooManyRequests: CredentialTooManyRequests,
}

// Message returns the user facing text for the kind
func (k CredentialErrorKind) Message() string {
	if msg, ok := credentialMessages[k]; ok {
		return msg
	}
	return credentialMessages[CredentialUnknown]
}

// ClassifyCredentialError maps a provider error to a CredentialErrorKind.
// Rich errors are matched on their text code, anything else on the
// provider code embedded in the message (e.g. "auth/wrong-password").
func ClassifyCredentialError(err error) CredentialErrorKind {
	if err == nil {
		return CredentialUnknown
	}

	for _, code := range textCodes(err) {
		if kind, ok := textCodeKinds[code]; ok {
			return kind
		}
	}

	msg := err.Error()
	for code, kind := range textCodeKinds {
		if strings.Contains(msg, code) {
			return kind
		}
	}

	return CredentialUnknown
}

// IsProfileNotFound reports whether err signals a missing users record
func IsProfileNotFound(err error) bool {
	return HasTextCode(err, TextCodeProfileNotFound)
}

// HasTextCode reports whether any rich error in the chain carries code
func HasTextCode(err error, code string) bool {
	for _, c := range textCodes(err) {
		if c == code {
			return true
		}
	}
	return false
}

func textCodes(err error) []string {
	var codes []string
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if richErr, ok := e.(*errors.Error); ok && richErr != nil && richErr.TextCode != "" {
			codes = append(codes, richErr.TextCode)
		}
	}
	return codes
}
