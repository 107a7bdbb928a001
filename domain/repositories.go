package domain

import (
	"context"
	"time"
)

// UserRepository persists user accounts. Every operation is atomic over a single
// document.
type UserRepository interface {
	// Create inserts a new user. Returns ErrEmailTaken or ErrUsernameTaken when
	// the corresponding unique constraint is violated.
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	// FindByUsernameAndRefreshToken looks a user up by the exact
	// (username, refresh token) pair. This is the authoritative refresh-token
	// check; the username prefix embedded in the token is only a routing hint.
	FindByUsernameAndRefreshToken(ctx context.Context, username, refreshToken string) (*User, error)
	// SetRefreshTokenIfAbsent persists token on the user's record only if no
	// refresh token is currently stored, and reports whether the write won.
	// Concurrent signins racing to mint the first token resolve through this
	// conditional write.
	SetRefreshTokenIfAbsent(ctx context.Context, username, token string) (bool, error)
	// ClearRefreshToken unsets the stored refresh token. Returns
	// ErrRefreshTokenNotFound when no record matches the pair.
	ClearRefreshToken(ctx context.Context, username, refreshToken string) error
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
	List(ctx context.Context) ([]*User, error)
}

// DeviceRepository persists devices and their pin values.
type DeviceRepository interface {
	List(ctx context.Context, username string) ([]*Device, error)
	Get(ctx context.Context, username, deviceName string) (*Device, error)
	// Create inserts a new device. Returns ErrDeviceExists when the user
	// already owns a device with that name.
	Create(ctx context.Context, device *Device) error
	// UpdatePins merges the given pin values into the device document and
	// bumps its updated timestamp.
	UpdatePins(ctx context.Context, username, deviceName string, pins map[string]any) error
	Delete(ctx context.Context, username, deviceName string) error
	// SetPin writes a single pin value, creating the device if it does not
	// exist yet (upsert).
	SetPin(ctx context.Context, username, deviceName, pin string, value any) error
	UnsetPin(ctx context.Context, username, deviceName, pin string) error
	// ListActive returns devices updated within the given window, across all
	// users.
	ListActive(ctx context.Context, since time.Time) ([]*Device, error)
}

// SketchRepository persists saved code sketches.
type SketchRepository interface {
	List(ctx context.Context, username string) ([]*Sketch, error)
	Get(ctx context.Context, username, id string) (*Sketch, error)
	FindByTitle(ctx context.Context, username, title string) (*Sketch, error)
	Create(ctx context.Context, sketch *Sketch) error
	Update(ctx context.Context, username, id string, update SketchUpdate) error
	Delete(ctx context.Context, username, id string) error
}
