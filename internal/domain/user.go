package domain

import "time"

// User is the account record owned by the user store. TokenVersion is the refresh-token
// revocation counter: bumping it invalidates every outstanding refresh token.
type User struct {
	ID            string
	Email         string
	DisplayName   string
	Role          Role
	StoreName     *string
	StoreType     *string
	AvatarRef     *string
	EmailVerified bool
	IsActive      bool
	TokenVersion  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PrincipalFields projects the user onto the claims an access token carries.
func (u User) PrincipalFields() PrincipalFields {
	active := u.IsActive
	return PrincipalFields{
		UserID:        u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Role:          u.Role,
		StoreName:     u.StoreName,
		StoreType:     u.StoreType,
		AvatarRef:     u.AvatarRef,
		EmailVerified: u.EmailVerified,
		IsActive:      &active,
	}
}
