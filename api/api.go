// Package api exposes the Firstmakers REST surface on echo.
package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/firstmakers/fm-api/cache"
	"github.com/firstmakers/fm-api/domain"
	"github.com/firstmakers/fm-api/middleware"
	"github.com/firstmakers/fm-api/services"
	"github.com/firstmakers/fm-api/token"
)

// Response is the uniform envelope for mutations and failures.
type Response struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	MessageCode string `json:"message_code,omitempty"`
}

// API holds the handler dependencies.
type API struct {
	accounts   *services.AccountService
	devices    domain.DeviceRepository
	sketches   domain.SketchRepository
	codec      *token.Codec
	tokenCache cache.TokenCache
}

// New initializes the API.
func New(
	accounts *services.AccountService,
	devices domain.DeviceRepository,
	sketches domain.SketchRepository,
	codec *token.Codec,
	tokenCache cache.TokenCache,
) *API {
	return &API{
		accounts:   accounts,
		devices:    devices,
		sketches:   sketches,
		codec:      codec,
		tokenCache: tokenCache,
	}
}

// RegisterRoutes mounts the public auth routes and the token-protected /api
// group.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.Validator = &requestValidator{validate: validator.New()}

	auth := e.Group("/auth")
	auth.POST("/signup", a.Signup)
	auth.POST("/signin", a.Signin)
	auth.POST("/token", a.Token)
	auth.POST("/token/revoke", a.TokenRevoke)
	auth.POST("/forgotpassword", a.ForgotPassword)
	auth.POST("/resetpassword", a.ResetPassword)
	auth.POST("/activate", a.RequestActivation)
	// TODO: add POST /auth/activate/confirm redeeming validate-account tokens
	// once product defines what a validated account unlocks.

	api := e.Group("/api", middleware.RequireToken(a.codec, a.tokenCache))
	api.GET("/users", a.ListUsers)

	api.GET("/devices", a.ListDevices)
	api.POST("/devices", a.CreateDevice)
	api.GET("/devices-active", a.ListActiveDevices)
	api.GET("/devices/:deviceName", a.GetDevice)
	api.PUT("/devices/:deviceName", a.UpdateDevice)
	api.DELETE("/devices/:deviceName", a.DeleteDevice)
	api.GET("/devices/:deviceName/pins", a.GetPins)
	api.PUT("/devices/:deviceName/pins/:pin", a.SetPin)
	api.DELETE("/devices/:deviceName/pins/:pin", a.DeletePin)

	api.GET("/sketches", a.ListSketches)
	api.POST("/sketches", a.CreateSketch)
	api.GET("/sketches/:id", a.GetSketch)
	api.PUT("/sketches/:id", a.UpdateSketch)
	api.DELETE("/sketches/:id", a.DeleteSketch)
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// ok writes a success envelope.
func ok(c echo.Context, message, code string) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: message, MessageCode: code})
}

// failValidation writes a 400 envelope for a bad request body.
func failValidation(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, Response{
		Success:     false,
		Message:     message,
		MessageCode: "validation_error",
	})
}

// fail maps domain errors to status codes and the failure envelope. Store
// failures surface as 500, never as success:false with 200.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := "store_error"
	message := "Internal error."

	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		status, code, message = http.StatusConflict, "email_taken", "There is already a user with this email."
	case errors.Is(err, domain.ErrUsernameTaken):
		status, code, message = http.StatusConflict, "username_taken", "This username is already taken."
	case errors.Is(err, domain.ErrInvalidCredentials):
		status, code, message = http.StatusUnauthorized, "auth_failed", "Authentication failed."
	case errors.Is(err, domain.ErrTokenExpired):
		status, code, message = http.StatusUnauthorized, "token_expired", "Token expired."
	case errors.Is(err, domain.ErrIntentMismatch):
		status, code, message = http.StatusUnauthorized, "intent_mismatch", "Token was issued for a different purpose."
	case errors.Is(err, domain.ErrInvalidToken):
		status, code, message = http.StatusUnauthorized, "invalid_token", "Failed to authenticate token."
	case errors.Is(err, domain.ErrRefreshTokenNotFound):
		status, code, message = http.StatusNotFound, "refresh_token_not_found", "Refresh token is not valid."
	case errors.Is(err, domain.ErrUserNotFound):
		status, code, message = http.StatusNotFound, "user_not_found", "No user with that email."
	case errors.Is(err, domain.ErrDeviceNotFound):
		status, code, message = http.StatusNotFound, "device_not_found", "Device not found."
	case errors.Is(err, domain.ErrDeviceExists):
		status, code, message = http.StatusConflict, "device_exists", "Device already exists."
	case errors.Is(err, domain.ErrSketchNotFound):
		status, code, message = http.StatusNotFound, "sketch_not_found", "Sketch not found."
	case errors.Is(err, domain.ErrSketchTitleTaken):
		status, code, message = http.StatusConflict, "sketch_title_taken", "Sketch title already exists."
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.JSON(status, Response{Success: false, Message: message, MessageCode: code})
}
