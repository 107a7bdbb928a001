package domain

import "time"

// User represents a registered Firstmakers account. Username and email are both
// unique across all users; username is the canonical ownership key for every
// resource downstream of authentication.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Admin        bool      `bson:"admin" json:"admin"`
	Validated    bool      `bson:"validated" json:"validated"`
	RefreshToken string    `bson:"refresh_token,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"-"`
}

// PublicUser is the projection of a user that is safe to return from the API.
type PublicUser struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Validated bool      `json:"validated"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the API-safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		Username:  u.Username,
		Email:     u.Email,
		Validated: u.Validated,
		CreatedAt: u.CreatedAt,
	}
}
