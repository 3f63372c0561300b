package domain

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// PrincipalFields is the identity payload an access token is issued for.
type PrincipalFields struct {
	UserID        string
	Email         string
	DisplayName   string
	Role          Role
	StoreName     *string
	StoreType     *string
	AvatarRef     *string
	EmailVerified bool
	// IsActive is nil for an active account; only an explicit false marks it deactivated.
	IsActive *bool
}

// Validate checks the fields every access token must carry.
func (f PrincipalFields) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.UserID, validation.Required),
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Role, validation.Required, validation.In(RoleOwner, RoleCustomer)),
	)
}

// Principal is the authenticated identity attached to a request. It is rebuilt on every
// successful verification and never persisted.
type Principal struct {
	UserID        string
	Email         string
	DisplayName   string
	Role          Role
	StoreName     *string
	StoreType     *string
	AvatarRef     *string
	EmailVerified bool
	IsActive      bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Fields strips the token timestamps from the principal.
func (p Principal) Fields() PrincipalFields {
	active := p.IsActive
	return PrincipalFields{
		UserID:        p.UserID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		StoreName:     p.StoreName,
		StoreType:     p.StoreType,
		AvatarRef:     p.AvatarRef,
		EmailVerified: p.EmailVerified,
		IsActive:      &active,
	}
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role Role) bool {
	return p.Role == role
}
