package auth

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/storefront-auth/internal/domain"
)

const (
	refreshTokenType = "refresh"
	claimPurpose     = "purpose"
)

// accessClaims is the access token payload. Custom claims mirror domain.PrincipalFields.
type accessClaims struct {
	UserID        string      `json:"userId"`
	Email         string      `json:"email"`
	DisplayName   string      `json:"name,omitempty"`
	Role          domain.Role `json:"role"`
	StoreName     *string     `json:"storeName,omitempty"`
	StoreType     *string     `json:"storeType,omitempty"`
	AvatarRef     *string     `json:"avatar,omitempty"`
	EmailVerified bool        `json:"emailVerified"`
	IsActive      *bool       `json:"isActive,omitempty"`
	// Purpose is only ever set on short-lived tokens; access verification rejects it.
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

func newAccessClaims(f domain.PrincipalFields) accessClaims {
	return accessClaims{
		UserID:        f.UserID,
		Email:         f.Email,
		DisplayName:   f.DisplayName,
		Role:          f.Role,
		StoreName:     f.StoreName,
		StoreType:     f.StoreType,
		AvatarRef:     f.AvatarRef,
		EmailVerified: f.EmailVerified,
		IsActive:      f.IsActive,
	}
}

// principal validates the custom claims and builds the verified Principal. A missing isActive
// claim counts as active; only an explicit false deactivates.
func (c *accessClaims) principal() (*domain.Principal, error) {
	fields := domain.PrincipalFields{
		UserID: c.UserID,
		Email:  c.Email,
		Role:   c.Role,
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	p := &domain.Principal{
		UserID:        c.UserID,
		Email:         c.Email,
		DisplayName:   c.DisplayName,
		Role:          c.Role,
		StoreName:     c.StoreName,
		StoreType:     c.StoreType,
		AvatarRef:     c.AvatarRef,
		EmailVerified: c.EmailVerified,
		IsActive:      c.IsActive == nil || *c.IsActive,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p, nil
}

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	UserID       string `json:"uid"`
	TokenVersion int64  `json:"tv"`
	Type         string `json:"typ"`
	jwt.RegisteredClaims
}

// RawClaims holds claims decoded WITHOUT signature verification. It exists for diagnostics
// such as reporting when an expired session ended; nothing in it may authorize a request, and
// it has no conversion to domain.Principal.
type RawClaims struct {
	claims jwt.MapClaims
}

// Get returns a raw claim value.
func (r *RawClaims) Get(key string) (any, bool) {
	v, ok := r.claims[key]
	return v, ok
}

// Subject returns the unverified "sub" claim.
func (r *RawClaims) Subject() string {
	sub, _ := r.claims.GetSubject()
	return sub
}

// Purpose returns the unverified purpose tag of a short-lived token.
func (r *RawClaims) Purpose() string {
	purpose, _ := r.claims[claimPurpose].(string)
	return purpose
}

// ExpiresAt returns the unverified expiry and whether a usable "exp" claim exists.
func (r *RawClaims) ExpiresAt() (time.Time, bool) {
	exp, err := r.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
