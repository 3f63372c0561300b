package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/storefront-auth/internal/config"
	"github.com/spec-kit/storefront-auth/internal/domain"
)

const defaultShortLivedTTL = time.Hour

// signingMethod is the only algorithm the codec signs with or accepts.
var signingMethod = jwt.SigningMethodHS256

// registeredShortLivedKeys are overwritten at issuance and stripped on verification.
var registeredShortLivedKeys = []string{"iss", "aud", "iat", "exp", "nbf", "jti"}

// Codec signs and verifies access, refresh and short-lived purpose tokens. It holds no mutable
// state after construction and is safe for concurrent use.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	shortTTL      time.Duration
	issuer        string
	audience      []string
	now           func() time.Time
}

// CodecOption customizes a Codec at construction time.
type CodecOption func(*Codec)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a codec from immutable auth configuration.
func NewCodec(cfg config.AuthConfig, opts ...CodecOption) (*Codec, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("auth: refresh secret is required")
	}
	if cfg.RefreshSecret == cfg.JWTSecret {
		return nil, errors.New("auth: refresh secret must differ from the access secret")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	if cfg.Issuer == "" || len(cfg.Audience) == 0 {
		return nil, errors.New("auth: issuer and audience are required")
	}

	shortTTL := cfg.ShortLivedTokenTTL
	if shortTTL <= 0 {
		shortTTL = defaultShortLivedTTL
	}

	c := &Codec{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		shortTTL:      shortTTL,
		issuer:        cfg.Issuer,
		audience:      append([]string(nil), cfg.Audience...),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccessToken signs an access token for the given identity and returns it with its expiry.
func (c *Codec) IssueAccessToken(fields domain.PrincipalFields) (string, time.Time, error) {
	if err := fields.Validate(); err != nil {
		return "", time.Time{}, newAuthError(KindTokenCreationFailed, "invalid principal fields", err)
	}

	claims := newAccessClaims(fields)
	claims.RegisteredClaims = c.registered(fields.UserID, c.accessTTL)

	signed, err := c.sign(claims, c.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken signs a refresh token with the refresh secret.
func (c *Codec) IssueRefreshToken(userID string, tokenVersion int64) (string, time.Time, error) {
	if userID == "" || tokenVersion < 0 {
		return "", time.Time{}, newAuthError(KindTokenCreationFailed, "invalid refresh token input", nil)
	}

	claims := RefreshClaims{
		UserID:           userID,
		TokenVersion:     tokenVersion,
		Type:             refreshTokenType,
		RegisteredClaims: c.registered(userID, c.refreshTTL),
	}

	signed, err := c.sign(claims, c.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// IssueShortLivedToken signs an arbitrary claims bag tagged with purpose. A non-positive ttl
// falls back to the configured short-lived TTL.
func (c *Codec) IssueShortLivedToken(bag map[string]any, purpose string, ttl time.Duration) (string, time.Time, error) {
	if purpose == "" {
		return "", time.Time{}, newAuthError(KindTokenCreationFailed, "purpose is required", nil)
	}
	if ttl <= 0 {
		ttl = c.shortTTL
	}

	claims := jwt.MapClaims{}
	for k, v := range bag {
		claims[k] = v
	}
	now := c.now()
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	claims[claimPurpose] = purpose
	claims["iss"] = c.issuer
	claims["aud"] = c.audience
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = expiresAt
	claims["jti"] = uuid.NewString()
	delete(claims, "nbf")

	signed, err := c.sign(claims, c.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

// VerifyAccessToken returns the verified principal, or false on any verification failure.
func (c *Codec) VerifyAccessToken(token string) (*domain.Principal, bool) {
	p, err := c.VerifyAccessTokenDetailed(token)
	if err != nil {
		return nil, false
	}
	return p, true
}

// VerifyAccessTokenDetailed verifies signature, algorithm, issuer, audience and expiry, then
// the required identity claims. The returned error is always an *AuthError.
func (c *Codec) VerifyAccessTokenDetailed(token string) (*domain.Principal, error) {
	claims := &accessClaims{}
	if err := c.parse(token, claims, c.accessSecret); err != nil {
		return nil, err
	}
	if !c.audienceAllowed(claims.Audience) {
		return nil, newAuthError(KindInvalidToken, "audience mismatch", nil)
	}
	if claims.Purpose != "" {
		return nil, newAuthError(KindInvalidToken, "purpose token presented as access token", nil)
	}

	p, err := claims.principal()
	if err != nil {
		return nil, newAuthError(KindMalformedToken, "required claims missing or invalid", err)
	}
	return p, nil
}

// VerifyRefreshToken verifies a refresh token against the refresh secret. Comparing the
// returned TokenVersion with the user store is the caller's job.
func (c *Codec) VerifyRefreshToken(token string) (*RefreshClaims, bool) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.refreshSecret); err != nil {
		return nil, false
	}
	if !c.audienceAllowed(claims.Audience) {
		return nil, false
	}
	if claims.Type != refreshTokenType || claims.UserID == "" || claims.TokenVersion < 0 {
		return nil, false
	}
	return claims, true
}

// VerifyShortLivedToken verifies a purpose token and returns its claims bag without the
// registered claims. Tokens issued for another purpose are rejected even when the signature
// is valid.
func (c *Codec) VerifyShortLivedToken(token, expectedPurpose string) (map[string]any, bool) {
	if expectedPurpose == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if err := c.parse(token, claims, c.accessSecret); err != nil {
		return nil, false
	}
	aud, err := claims.GetAudience()
	if err != nil || !c.audienceAllowed(aud) {
		return nil, false
	}
	if purpose, _ := claims[claimPurpose].(string); purpose != expectedPurpose {
		return nil, false
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	for _, k := range registeredShortLivedKeys {
		delete(out, k)
	}
	return out, true
}

// DecodeWithoutVerification parses the claims segment without checking the signature.
// The result must never be used to authorize anything.
func (c *Codec) DecodeWithoutVerification(token string) (*RawClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return &RawClaims{claims: claims}, true
}

// IsExpired reports whether the token's exp has passed. Undecodable tokens and tokens without
// exp count as expired.
func (c *Codec) IsExpired(token string) bool {
	raw, ok := c.DecodeWithoutVerification(token)
	if !ok {
		return true
	}
	return c.rawExpired(raw)
}

func (c *Codec) rawExpired(raw *RawClaims) bool {
	exp, ok := raw.ExpiresAt()
	if !ok {
		return true
	}
	return !c.now().Before(exp)
}

func (c *Codec) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings(c.audience),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (c *Codec) sign(claims jwt.Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(secret)
	if err != nil {
		return "", newAuthError(KindTokenCreationFailed, "sign token", err)
	}
	return signed, nil
}

func (c *Codec) parse(token string, claims jwt.Claims, secret []byte) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return newAuthError(KindTokenExpired, "token expired", err)
	}
	return newAuthError(KindInvalidToken, "token verification failed", err)
}

func (c *Codec) audienceAllowed(aud jwt.ClaimStrings) bool {
	for _, got := range aud {
		for _, want := range c.audience {
			if got == want {
				return true
			}
		}
	}
	return false
}
