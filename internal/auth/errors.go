package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an authentication failure.
type Kind string

const (
	KindMissingToken        Kind = "MissingToken"
	KindTokenExpired        Kind = "TokenExpired"
	KindInvalidToken        Kind = "InvalidToken"
	KindMalformedToken      Kind = "MalformedToken"
	KindAccountDeactivated  Kind = "AccountDeactivated"
	KindInsufficientRole    Kind = "InsufficientRole"
	KindTokenCreationFailed Kind = "TokenCreationFailed"
)

const (
	msgLogInAgain   = "please log in again"
	msgAccessDenied = "access denied"
	msgInternal     = "internal server error"
)

var kindMeta = map[Kind]struct {
	code   string
	status int
	public string
}{
	KindMissingToken:        {"MISSING_TOKEN", http.StatusUnauthorized, msgLogInAgain},
	KindTokenExpired:        {"TOKEN_EXPIRED", http.StatusUnauthorized, msgLogInAgain},
	KindInvalidToken:        {"INVALID_TOKEN", http.StatusUnauthorized, msgLogInAgain},
	KindMalformedToken:      {"MALFORMED_TOKEN", http.StatusUnauthorized, msgLogInAgain},
	KindAccountDeactivated:  {"ACCOUNT_DEACTIVATED", http.StatusForbidden, msgAccessDenied},
	KindInsufficientRole:    {"INSUFFICIENT_ROLE", http.StatusForbidden, msgAccessDenied},
	KindTokenCreationFailed: {"TOKEN_CREATION_FAILED", http.StatusInternalServerError, msgInternal},
}

// Sentinels for errors.Is comparisons; matching is by Kind only.
var (
	ErrMissingToken        = &AuthError{Kind: KindMissingToken}
	ErrTokenExpired        = &AuthError{Kind: KindTokenExpired}
	ErrInvalidToken        = &AuthError{Kind: KindInvalidToken}
	ErrMalformedToken      = &AuthError{Kind: KindMalformedToken}
	ErrAccountDeactivated  = &AuthError{Kind: KindAccountDeactivated}
	ErrInsufficientRole    = &AuthError{Kind: KindInsufficientRole}
	ErrTokenCreationFailed = &AuthError{Kind: KindTokenCreationFailed}
)

// AuthError is the typed failure returned by every verification entry point. Message is the
// operator-facing detail; clients only ever see PublicMessage.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds an AuthError for callers outside the codec, such as the refresh flow.
func NewError(kind Kind, message string, cause error) *AuthError {
	return newAuthError(kind, message, cause)
}

func newAuthError(kind Kind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: cause}
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any *AuthError with the same Kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// ErrorCode returns the stable machine-readable code.
func (e *AuthError) ErrorCode() string {
	return kindMeta[e.Kind].code
}

// HTTPStatus returns 401 for credential problems, 403 for forbidden account state or role and
// 500 for issuance failures.
func (e *AuthError) HTTPStatus() int {
	if meta, ok := kindMeta[e.Kind]; ok {
		return meta.status
	}
	return http.StatusInternalServerError
}

// PublicMessage is safe to show to end users.
func (e *AuthError) PublicMessage() string {
	if meta, ok := kindMeta[e.Kind]; ok {
		return meta.public
	}
	return msgInternal
}

// KindOf extracts the failure kind from err, or "" when err is not an *AuthError.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
