package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/firstmakers/fm-api/domain"
	"github.com/firstmakers/fm-api/mailer"
	"github.com/firstmakers/fm-api/token"
)

// SigninResult is returned on successful authentication.
type SigninResult struct {
	Username     string
	Access       *token.AccessGrant
	RefreshToken string
}

// AccountService implements the account lifecycle: registration, password
// authentication, refresh-token exchange, and the mail-based password-reset
// and account-activation flows.
type AccountService struct {
	users   domain.UserRepository
	hasher  PasswordHasher
	issuer  *token.Issuer
	refresh *token.RefreshManager
	intents *token.IntentSigner
	mail    mailer.Sender
	baseURL string
}

// NewAccountService wires an AccountService. baseURL is the public URL of the
// frontend, used to build reset and activation links.
func NewAccountService(
	users domain.UserRepository,
	hasher PasswordHasher,
	issuer *token.Issuer,
	refresh *token.RefreshManager,
	intents *token.IntentSigner,
	mail mailer.Sender,
	baseURL string,
) *AccountService {
	return &AccountService{
		users:   users,
		hasher:  hasher,
		issuer:  issuer,
		refresh: refresh,
		intents: intents,
		mail:    mail,
		baseURL: baseURL,
	}
}

// Signup registers a new account. Email uniqueness is checked before username
// so the conflict message names the right field; the unique indexes on the
// collection close the remaining race.
func (s *AccountService) Signup(ctx context.Context, username, email, password string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	log.Info().Str("username", username).Msg("user registered")
	return nil
}

// Signin authenticates with email and password, returning a fresh access token
// and the user's refresh token (minted on first signin). Unknown email and
// wrong password both surface as ErrInvalidCredentials.
func (s *AccountService) Signin(ctx context.Context, email, password string) (*SigninResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	grant, err := s.issuer.IssueAccess(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.refresh.Ensure(ctx, user)
	if err != nil {
		return nil, err
	}

	return &SigninResult{
		Username:     user.Username,
		Access:       grant,
		RefreshToken: refreshToken,
	}, nil
}

// RefreshAccess exchanges a refresh token for a new access token.
func (s *AccountService) RefreshAccess(ctx context.Context, refreshToken string) (*token.AccessGrant, error) {
	return s.refresh.Redeem(ctx, refreshToken)
}

// RevokeRefresh invalidates a refresh token.
func (s *AccountService) RevokeRefresh(ctx context.Context, refreshToken string) error {
	return s.refresh.Revoke(ctx, refreshToken)
}

// RequestPasswordReset mails a single-purpose reset link to the account that
// owns the email. Fails with ErrUserNotFound when no account does.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		return err
	}

	resetToken, expiresAt, err := s.intents.IssueReset(email)
	if err != nil {
		return err
	}

	link := s.link("/resetpassword", "reset_token", resetToken)
	html := fmt.Sprintf(
		"<p>We received a request to reset your Firstmakers password.</p>"+
			"<p><a href=%q>Choose a new password</a></p>"+
			"<p>The link expires at %s. If you did not request this, ignore this email.</p>",
		link, expiresAt.UTC().Format("15:04 MST, Jan 2 2006"))

	if err := s.mail.Send(ctx, email, "Reset your Firstmakers password", html); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}
	log.Info().Str("email", email).Time("expires_at", expiresAt).Msg("password reset email sent")
	return nil
}

// ResetPassword redeems a reset token and replaces the account's password
// hash. Outstanding access and refresh tokens are left untouched.
func (s *AccountService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.intents.Redeem(resetToken, token.IntentResetPassword)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, claims.Email, hash); err != nil {
		return err
	}
	log.Info().Str("email", claims.Email).Msg("password reset completed")
	return nil
}

// RequestActivation mails an account-activation link. The redemption endpoint
// for activation tokens does not exist yet; issuing is kept so the email flow
// can be exercised end to end once it lands.
func (s *AccountService) RequestActivation(ctx context.Context, email string) error {
	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		return err
	}

	activationToken, expiresAt, err := s.intents.IssueActivation(email)
	if err != nil {
		return err
	}

	link := s.link("/activate", "activation_token", activationToken)
	html := fmt.Sprintf(
		"<p>Welcome to Firstmakers!</p>"+
			"<p><a href=%q>Activate your account</a></p>"+
			"<p>The link expires on %s.</p>",
		link, expiresAt.UTC().Format("Jan 2 2006"))

	if err := s.mail.Send(ctx, email, "Activate your Firstmakers account", html); err != nil {
		return fmt.Errorf("sending activation email: %w", err)
	}
	log.Info().Str("email", email).Msg("activation email sent")
	return nil
}

// ListUsers returns the API-safe projection of every account.
func (s *AccountService) ListUsers(ctx context.Context) ([]domain.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	public := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return public, nil
}

func (s *AccountService) link(path, param, value string) string {
	return s.baseURL + path + "?" + param + "=" + url.QueryEscape(value)
}
