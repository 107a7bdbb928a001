package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("a user with this email already exists")
	ErrUsernameTaken        = errors.New("a user with this username already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrIntentMismatch       = errors.New("token intent mismatch")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrDeviceNotFound       = errors.New("device not found")
	ErrDeviceExists         = errors.New("device already exists")
	ErrSketchNotFound       = errors.New("sketch not found")
	ErrSketchTitleTaken     = errors.New("sketch title already exists")
)
