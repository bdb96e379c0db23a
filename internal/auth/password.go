package auth

import "golang.org/x/crypto/bcrypt"

// Passwords are stored as bcrypt hashes only; there is no plaintext
// comparison path for legacy rows.

// HashPassword derives a bcrypt hash at the default cost.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword returns nil when pw matches the stored hash.
func CheckPassword(hash, pw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
}
