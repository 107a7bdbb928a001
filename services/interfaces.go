package services

// PasswordHasher abstracts one-way salted password hashing.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns nil when password matches hashedPassword.
	Verify(hashedPassword, password string) error
}
