package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/firstmakers/fm-api/domain"
)

// refreshTokenRandomBytes is the entropy of the random part of a refresh token.
const refreshTokenRandomBytes = 40

// RefreshManager generates, validates, and revokes long-lived refresh tokens.
// A user holds at most one refresh token at a time, stored on the user record.
// Tokens are reusable until explicitly revoked; there is no rotation on redeem.
type RefreshManager struct {
	users  domain.UserRepository
	issuer *Issuer
}

// NewRefreshManager creates a RefreshManager backed by the given user store.
func NewRefreshManager(users domain.UserRepository, issuer *Issuer) *RefreshManager {
	return &RefreshManager{users: users, issuer: issuer}
}

// Ensure returns the user's refresh token, minting and persisting one if none
// exists yet. The persist is a conditional set-if-absent write; if a concurrent
// signin wins the race, the winner's token is returned.
func (m *RefreshManager) Ensure(ctx context.Context, user *domain.User) (string, error) {
	if user.RefreshToken != "" {
		return user.RefreshToken, nil
	}

	generated, err := generateRefreshToken(user.Username)
	if err != nil {
		return "", err
	}

	won, err := m.users.SetRefreshTokenIfAbsent(ctx, user.Username, generated)
	if err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}
	if won {
		return generated, nil
	}

	// Lost the race: another request stored a token first. Re-read it.
	current, err := m.users.FindByUsername(ctx, user.Username)
	if err != nil {
		return "", fmt.Errorf("re-reading refresh token: %w", err)
	}
	if current.RefreshToken == "" {
		return "", errors.New("refresh token missing after conditional write")
	}
	return current.RefreshToken, nil
}

// Redeem exchanges a refresh token for a new access token. The username prefix
// of the token routes the lookup; the exact (username, token) pair against the
// store is the authoritative check.
func (m *RefreshManager) Redeem(ctx context.Context, refreshToken string) (*AccessGrant, error) {
	username, err := splitRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := m.users.FindByUsernameAndRefreshToken(ctx, username, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrRefreshTokenNotFound
		}
		return nil, err
	}

	return m.issuer.IssueAccess(user)
}

// Revoke clears the refresh token from its owner's record. Fails with
// domain.ErrRefreshTokenNotFound when no record holds the token.
func (m *RefreshManager) Revoke(ctx context.Context, refreshToken string) error {
	username, err := splitRefreshToken(refreshToken)
	if err != nil {
		return err
	}

	if err := m.users.ClearRefreshToken(ctx, username, refreshToken); err != nil {
		return err
	}
	log.Info().Str("username", username).Msg("refresh token revoked")
	return nil
}

// generateRefreshToken builds "<username>.<random-hex>" from a cryptographically
// secure source. Predictable refresh tokens would be an account-takeover vector.
func generateRefreshToken(username string) (string, error) {
	buf := make([]byte, refreshTokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return username + "." + hex.EncodeToString(buf), nil
}

// splitRefreshToken extracts the username routing hint before the first dot.
func splitRefreshToken(refreshToken string) (string, error) {
	username, _, found := strings.Cut(refreshToken, ".")
	if !found || username == "" {
		return "", domain.ErrRefreshTokenNotFound
	}
	return username, nil
}
