package token

import (
	"fmt"
	"time"

	"github.com/firstmakers/fm-api/domain"
)

// Intent tags carried by single-purpose tokens. The tag is checked at
// redemption time; a token issued for one flow can never be redeemed in
// another.
const (
	IntentResetPassword   = "reset-password"
	IntentValidateAccount = "validate-account"
)

// Default lifetimes for intent tokens.
const (
	DefaultResetTokenTTL      = time.Hour
	DefaultActivationTokenTTL = 30 * 24 * time.Hour
)

// IntentSigner issues and redeems single-purpose signed tokens for the
// password-reset and account-activation flows. Intent tokens are never
// persisted; validity is signature + expiry + intent match.
type IntentSigner struct {
	codec       *Codec
	resetTTL    time.Duration
	activateTTL time.Duration
}

// NewIntentSigner creates an IntentSigner. Non-positive TTLs fall back to the
// defaults.
func NewIntentSigner(codec *Codec, resetTTL, activateTTL time.Duration) *IntentSigner {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	if activateTTL <= 0 {
		activateTTL = DefaultActivationTokenTTL
	}
	return &IntentSigner{codec: codec, resetTTL: resetTTL, activateTTL: activateTTL}
}

// IssueReset signs a password-reset token for the given email.
func (s *IntentSigner) IssueReset(email string) (string, time.Time, error) {
	return s.codec.Sign(Claims{Email: email, Intent: IntentResetPassword}, s.resetTTL)
}

// IssueActivation signs an account-activation token for the given email.
func (s *IntentSigner) IssueActivation(email string) (string, time.Time, error) {
	return s.codec.Sign(Claims{Email: email, Intent: IntentValidateAccount}, s.activateTTL)
}

// Redeem verifies an intent token and requires its intent tag to match. Fails
// with domain.ErrIntentMismatch when a valid token was issued for a different
// flow.
func (s *IntentSigner) Redeem(tokenString, wantIntent string) (*Claims, error) {
	claims, err := s.codec.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Intent != wantIntent {
		return nil, fmt.Errorf("%w: token carries %q, flow requires %q",
			domain.ErrIntentMismatch, claims.Intent, wantIntent)
	}
	return claims, nil
}
