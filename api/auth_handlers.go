package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Signup registers a new user.
func (a *API) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return failValidation(c, "Must provide a valid email, username and password.")
	}

	if err := a.accounts.Signup(c.Request().Context(), req.Username, req.Email, req.Password); err != nil {
		return fail(c, err)
	}
	return ok(c, "User registration successful.", "signup_ok")
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signinResponse struct {
	Success               bool      `json:"success"`
	Username              string    `json:"username"`
	Message               string    `json:"message"`
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiration time.Time `json:"access_token_expiration"`
	RefreshToken          string    `json:"refresh_token"`
}

// Signin authenticates with email and password and returns an access token
// plus the account's refresh token.
func (a *API) Signin(c echo.Context) error {
	var req signinRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return failValidation(c, "Must provide email and password to authenticate.")
	}

	result, err := a.accounts.Signin(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, signinResponse{
		Success:               true,
		Username:              result.Username,
		Message:               "Enjoy your token!",
		AccessToken:           result.Access.Token,
		AccessTokenExpiration: result.Access.ExpiresAt,
		RefreshToken:          result.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	Success               bool      `json:"success"`
	Message               string    `json:"message"`
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiration time.Time `json:"access_token_expiration"`
}

// refreshTokenParam reads the refresh token from the JSON body or, as the
// legacy clients send it, the query string.
func refreshTokenParam(c echo.Context) string {
	var req refreshRequest
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return c.QueryParam("refresh_token")
}

// Token exchanges a refresh token for a new access token.
func (a *API) Token(c echo.Context) error {
	refreshToken := refreshTokenParam(c)
	if refreshToken == "" {
		return failValidation(c, "Must provide a refresh_token.")
	}

	grant, err := a.accounts.RefreshAccess(c.Request().Context(), refreshToken)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{
		Success:               true,
		Message:               "Enjoy your token!",
		AccessToken:           grant.Token,
		AccessTokenExpiration: grant.ExpiresAt,
	})
}

// TokenRevoke invalidates a refresh token.
func (a *API) TokenRevoke(c echo.Context) error {
	refreshToken := refreshTokenParam(c)
	if refreshToken == "" {
		return failValidation(c, "Must provide a refresh_token.")
	}

	if err := a.accounts.RevokeRefresh(c.Request().Context(), refreshToken); err != nil {
		return fail(c, err)
	}
	return ok(c, "Refresh token revoked.", "token_revoked")
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword mails a password-reset link to the account owning the email.
func (a *API) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return failValidation(c, "Must provide an email.")
	}

	if err := a.accounts.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return fail(c, err)
	}
	return ok(c, "Password reset email sent.", "reset_sent")
}

type resetPasswordRequest struct {
	Password   string `json:"password" validate:"required,min=6"`
	ResetToken string `json:"reset_token" validate:"required"`
}

// ResetPassword redeems a reset token and sets the new password.
func (a *API) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return failValidation(c, "Must provide a password and reset_token.")
	}

	if err := a.accounts.ResetPassword(c.Request().Context(), req.ResetToken, req.Password); err != nil {
		return fail(c, err)
	}
	return ok(c, "Password updated.", "password_updated")
}

// RequestActivation mails an account-activation link.
func (a *API) RequestActivation(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return failValidation(c, "Must provide an email.")
	}

	if err := a.accounts.RequestActivation(c.Request().Context(), req.Email); err != nil {
		return fail(c, err)
	}
	return ok(c, "Activation email sent.", "activation_sent")
}

// ListUsers returns the safe projection of all accounts.
func (a *API) ListUsers(c echo.Context) error {
	users, err := a.accounts.ListUsers(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}
