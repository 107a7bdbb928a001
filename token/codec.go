package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/firstmakers/fm-api/domain"
)

// Claims is the payload carried by access and intent tokens. Access tokens set
// Email and Username; intent tokens set Email and Intent.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Intent   string `json:"intent,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies compact HS256 tokens with a shared secret. The
// secret is supplied at construction; there is no process-wide fallback.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec for the given signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign produces a signed token carrying claims with an absolute expiry of
// now+ttl. The expiry is returned so callers can surface it to clients without
// re-decoding the token.
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
// Fails with domain.ErrTokenExpired when the expiry has passed, or
// domain.ErrInvalidToken for any other defect (tampering, wrong algorithm,
// malformed input).
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	return claims, nil
}

// Decode reads a token's claims without verifying the signature or expiry.
// Only for display purposes, never for authorization decisions.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	return claims, nil
}
