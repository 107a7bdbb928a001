package token

import (
	"time"

	"github.com/firstmakers/fm-api/domain"
)

// DefaultAccessTokenTTL is how long access tokens stay valid unless configured
// otherwise.
const DefaultAccessTokenTTL = time.Hour

// AccessGrant is a freshly issued access token together with its expiry.
type AccessGrant struct {
	Token     string
	ExpiresAt time.Time
}

// Issuer mints short-lived access tokens bound to a user identity. Issuing is a
// pure function of the identity and the clock; nothing is persisted.
type Issuer struct {
	codec *Codec
	ttl   time.Duration
}

// NewIssuer creates an Issuer. A non-positive ttl falls back to
// DefaultAccessTokenTTL.
func NewIssuer(codec *Codec, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &Issuer{codec: codec, ttl: ttl}
}

// IssueAccess signs an access token for the user.
func (i *Issuer) IssueAccess(user *domain.User) (*AccessGrant, error) {
	signed, expiresAt, err := i.codec.Sign(Claims{
		Email:    user.Email,
		Username: user.Username,
	}, i.ttl)
	if err != nil {
		return nil, err
	}
	return &AccessGrant{Token: signed, ExpiresAt: expiresAt}, nil
}
