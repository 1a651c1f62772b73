package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher wraps bcrypt behind a fixed cost so hashing and verification
// always use the same parameters.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher builds a hasher; a non-positive cost falls back to
// bcrypt's default.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{cost: cost}
}

// Hash derives the storable hash for a plaintext password.
func (h PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare verifies a plaintext password against its stored hash.
func (h PasswordHasher) Compare(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
