package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/spec-kit/storefront-auth/internal/auth/trusted"
	"github.com/spec-kit/storefront-auth/internal/domain"
)

// PrincipalResponse is the public view of an authenticated identity.
type PrincipalResponse struct {
	UserID        string      `json:"user_id"`
	Email         string      `json:"email"`
	DisplayName   string      `json:"display_name,omitempty"`
	Role          domain.Role `json:"role"`
	StoreName     *string     `json:"store_name,omitempty"`
	StoreType     *string     `json:"store_type,omitempty"`
	AvatarRef     *string     `json:"avatar,omitempty"`
	EmailVerified bool        `json:"email_verified"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

// NewPrincipalResponse maps a principal to its response.
func NewPrincipalResponse(p *domain.Principal) PrincipalResponse {
	resp := PrincipalResponse{
		UserID:        p.UserID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		StoreName:     p.StoreName,
		StoreType:     p.StoreType,
		AvatarRef:     p.AvatarRef,
		EmailVerified: p.EmailVerified,
	}
	if !p.ExpiresAt.IsZero() {
		exp := p.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}

// SessionStateResponse answers GET /auth/session for anonymous and signed-in callers alike.
type SessionStateResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *PrincipalResponse `json:"user,omitempty"`
}

// AuthResponse reports cookie expiries after issuance or refresh. Tokens travel only in cookies.
type AuthResponse struct {
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// VerifyEmailConfirmRequest payload for POST /auth/verify-email/confirm.
type VerifyEmailConfirmRequest struct {
	Token string `json:"token"`
}

// Validate checks the payload.
func (r VerifyEmailConfirmRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// RevokeResponse reports the token version after a logout-all.
type RevokeResponse struct {
	TokenVersion int64 `json:"token_version"`
}

// TrustedIdentityResponse echoes identity headers on the internal listener.
type TrustedIdentityResponse struct {
	UserID        string       `json:"user_id"`
	Email         *string      `json:"email,omitempty"`
	DisplayName   *string      `json:"display_name,omitempty"`
	Role          *domain.Role `json:"role,omitempty"`
	EmailVerified *bool        `json:"email_verified,omitempty"`
	IsActive      *bool        `json:"is_active,omitempty"`
}

// NewTrustedIdentityResponse maps a header identity to its response.
func NewTrustedIdentityResponse(id *trusted.Identity) TrustedIdentityResponse {
	return TrustedIdentityResponse{
		UserID:        id.UserID,
		Email:         id.Email,
		DisplayName:   id.DisplayName,
		Role:          id.Role,
		EmailVerified: id.EmailVerified,
		IsActive:      id.IsActive,
	}
}
